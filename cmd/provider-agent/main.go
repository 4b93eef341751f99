// Command provider-agent wires the negotiator pipeline, the payment
// sync engine, and the virtual TCP/IP proxy into one long-running
// process, grounded on the teacher's component-boot-then-block style
// (cmd/consensusd/main.go).
package main

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"provideragent/config"
	"provideragent/health"
	"provideragent/identity"
	"provideragent/inet"
	"provideragent/inet/netstack"
	"provideragent/negotiator"
	"provideragent/negotiator/builtin"
	"provideragent/negotiator/rulestore"
	"provideragent/observability/logging"
	"provideragent/observability/otel"
	"provideragent/payment/dao"
	"provideragent/payment/signbus"
	paysync "provideragent/payment/sync"
	"provideragent/payment/transport"
)

func main() {
	configPath := flag.String("config", "", "path to the provider-agent YAML config file")
	flag.Parse()

	logger := logging.Setup("provider-agent", os.Getenv("PROVIDER_AGENT_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	idProvider := identity.New(cfg.Identity.KeystoreDir)
	defaultIdentity, err := idProvider.GetDefault(context.Background())
	if err != nil {
		logger.Error("no usable default identity, cannot start", "error", err, "keystoreDir", cfg.Identity.KeystoreDir)
		os.Exit(1)
	}
	logger.Info("resolved default identity", "address", defaultIdentity.Address.String())

	rules, err := rulestore.LoadOrCreate(cfg.Negotiator.RuleFile)
	if err != nil {
		logger.Error("rule document is unparseable, cannot start", "error", err, "path", cfg.Negotiator.RuleFile)
		os.Exit(1)
	}

	var trustedCAs *x509.CertPool
	if cfg.Negotiator.TrustedCAFile != "" {
		trustedCAs, err = loadTrustedCAs(cfg.Negotiator.TrustedCAFile)
		if err != nil {
			logger.Error("failed to load trusted CA bundle", "error", err, "path", cfg.Negotiator.TrustedCAFile)
			os.Exit(1)
		}
	}

	// The market listener that feeds demand/offer pairs into pipeline.Run
	// lives in a separate process; this binary only needs to boot the
	// pipeline so its components' rule and agreement-count state stay
	// live for that listener to call into.
	intakeLimiter := rate.NewLimiter(rate.Limit(cfg.Negotiator.IntakeRatePerSec), cfg.Negotiator.IntakeBurst)
	pipeline := negotiator.New(logger, intakeLimiter,
		builtin.NewBlacklist(rules, trustedCAs),
		builtin.NewAllowOnly(rules, trustedCAs),
		builtin.NewAuditedPayload(rules, trustedCAs),
		builtin.NewMaxAgreements(cfg.Negotiator.MaxAgreements),
	)

	store, err := dao.Open(cfg.Payment.DatabasePath)
	if err != nil {
		logger.Error("failed to open payment store", "error", err, "path", cfg.Payment.DatabasePath)
		os.Exit(1)
	}

	var driver signbus.Driver
	if cfg.SignBus.DriverURL != "" {
		driver = signbus.NewRPCDriver(cfg.SignBus.DriverURL)
	} else {
		logger.Warn("no signBus.driverUrl configured, payment signing is disabled")
		driver = noopDriver{}
	}
	bus := signbus.New(driver)

	peerTransport := transport.New(nil, envPeerResolver)
	syncEngine := paysync.New(store, bus, peerTransport, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := syncEngine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sync engine stopped unexpectedly", "error", err)
		}
	}()

	if cfg.Inet.Enabled {
		go runInetRelay(ctx, logger, cfg.Inet.SideChannelAddress, cfg.Inet.BindRatePerSecond, cfg.Inet.BindBurst)
	}

	healthRouter := health.NewRouter(map[string]health.Checker{
		"payment store": store.Ping,
	})
	healthServer := &http.Server{Addr: cfg.Health.Address, Handler: healthRouter}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped unexpectedly", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	logger.Info("provider agent started",
		"maxAgreements", cfg.Negotiator.MaxAgreements,
		"inetEnabled", cfg.Inet.Enabled,
		"pipelineComponents", pipeline.ComponentCount(),
		"healthAddress", cfg.Health.Address,
	)

	if cfg.Observability.Metrics || cfg.Observability.Tracing {
		shutdownTelemetry, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Observability.ServiceName,
			Endpoint:    cfg.Observability.OTLPEndpoint,
			Metrics:     cfg.Observability.Metrics,
			Traces:      cfg.Observability.Tracing,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without it", "error", err)
		} else {
			defer func() { _ = shutdownTelemetry(context.Background()) }()
		}
	}

	<-ctx.Done()
	logger.Info("provider agent shutting down")
}

// runInetRelay accepts side-channel connections from a sandboxed
// runtime and bridges each one through a fresh Proxy/Relay pair until
// ctx is canceled.
func runInetRelay(ctx context.Context, logger *slog.Logger, addr string, bindRatePerSecond float64, bindBurst int) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("inet: failed to listen on side channel", "address", addr, "error", err)
		return
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("inet: accept failed", "error", err)
			continue
		}
		go serveInetConn(conn, logger, bindRatePerSecond, bindBurst)
	}
}

// serveInetConn bridges one side-channel connection through its own
// Stack/Proxy/Relay until the connection closes. closingLink notices
// the read error egressFromRuntime hits on disconnect and uses it to
// unblock ingressFromStack, which otherwise only stops when the
// stack's event channel is closed.
func serveInetConn(conn net.Conn, logger *slog.Logger, bindRatePerSecond float64, bindBurst int) {
	defer conn.Close()

	stack := netstack.New(64)
	bindLimiter := rate.NewLimiter(rate.Limit(bindRatePerSecond), bindBurst)
	proxy := inet.NewProxy(stack, logger, nil, bindLimiter)
	relay := inet.NewRelay(proxy, stack, logger)

	link := &closingLink{Conn: conn, closed: make(chan struct{})}
	relay.Start(link)
	<-link.closed
	stack.Close()
	relay.Shutdown()
}

type closingLink struct {
	net.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func (l *closingLink) Read(p []byte) (int, error) {
	n, err := l.Conn.Read(p)
	if err != nil {
		l.closeOnce.Do(func() { close(l.closed) })
	}
	return n, err
}

func loadTrustedCAs(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates parsed from %s", path)
	}
	return pool, nil
}

// envPeerResolver resolves a peerID to its sync endpoint base URL via
// PROVIDER_AGENT_PEER_<peerID>_URL, a minimal static directory; a real
// deployment would consult the market gateway's peer directory instead.
func envPeerResolver(peerID string) (string, error) {
	key := "PROVIDER_AGENT_PEER_" + peerID + "_URL"
	url := os.Getenv(key)
	if url == "" {
		return "", fmt.Errorf("no peer URL configured for %s (set %s)", peerID, key)
	}
	return url, nil
}

type noopDriver struct{}

func (noopDriver) Sign(ctx context.Context, platform string, req signbus.Request) (signbus.Response, error) {
	return signbus.Response{}, fmt.Errorf("signbus: no driver configured")
}

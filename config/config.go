// Package config loads the provider-agent process configuration from a
// YAML file, grounded on the teacher's gateway config loader
// (gateway/config/config.go): same yaml.v3 decode-into-defaults shape,
// same tri-state bool pattern for telling "left unset" apart from
// "explicitly false".
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// IdentityConfig locates the node's ECDSA keystore directory and the
// `default` pointer file it contains (identity.Provider).
type IdentityConfig struct {
	KeystoreDir string `yaml:"keystoreDir"`
}

// SignBusConfig addresses the external payment-driver process reached
// over the signing bus (payment/signbus.RPCDriver).
type SignBusConfig struct {
	DriverURL string `yaml:"driverUrl"`
}

// InetConfig controls the virtual TCP/IP proxy (package inet).
type InetConfig struct {
	Enabled            bool    `yaml:"enabled"`
	SideChannelAddress string  `yaml:"sideChannelAddress"`
	BindRatePerSecond  float64 `yaml:"bindRatePerSecond"`
	BindBurst          int     `yaml:"bindBurst"`
}

// NegotiatorConfig configures the fixed-order pipeline's builtin
// components.
type NegotiatorConfig struct {
	MaxAgreements    int     `yaml:"maxAgreements"`
	RuleFile         string  `yaml:"ruleFile"`
	TrustedCAFile    string  `yaml:"trustedCaFile"`
	IntakeRatePerSec float64 `yaml:"intakeRatePerSecond"`
	IntakeBurst      int     `yaml:"intakeBurst"`
}

// PaymentConfig locates the SQLite-backed payment DAO store and tunes
// the sync engine's remote-call pacing.
type PaymentConfig struct {
	DatabasePath      string        `yaml:"databasePath"`
	RemoteCallTimeout time.Duration `yaml:"remoteCallTimeout"`
}

// ObservabilityConfig mirrors the teacher's gateway ObservabilityConfig
// shape, with a tri-state Metrics/Tracing pair so an operator can
// explicitly disable either without the zero-value silently doing the
// same thing as "not set".
type ObservabilityConfig struct {
	ServiceName  string `yaml:"serviceName"`
	Metrics      bool   `yaml:"metrics"`
	Tracing      bool   `yaml:"tracing"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	metricsSet   bool   `yaml:"-"`
	tracingSet   bool   `yaml:"-"`
}

func (o *ObservabilityConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawObservabilityConfig struct {
		ServiceName  string `yaml:"serviceName"`
		Metrics      *bool  `yaml:"metrics"`
		Tracing      *bool  `yaml:"tracing"`
		OTLPEndpoint string `yaml:"otlpEndpoint"`
	}
	var raw rawObservabilityConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	o.ServiceName = raw.ServiceName
	o.OTLPEndpoint = raw.OTLPEndpoint
	if raw.Metrics != nil {
		o.Metrics = *raw.Metrics
		o.metricsSet = true
	}
	if raw.Tracing != nil {
		o.Tracing = *raw.Tracing
		o.tracingSet = true
	}
	return nil
}

// HealthConfig addresses the chi-routed health/readiness HTTP endpoint.
type HealthConfig struct {
	Address string `yaml:"address"`
}

// Config is the full provider-agent process configuration.
type Config struct {
	Identity      IdentityConfig      `yaml:"identity"`
	SignBus       SignBusConfig       `yaml:"signBus"`
	Inet          InetConfig          `yaml:"inet"`
	Negotiator    NegotiatorConfig    `yaml:"negotiator"`
	Payment       PaymentConfig       `yaml:"payment"`
	Observability ObservabilityConfig `yaml:"observability"`
	Health        HealthConfig        `yaml:"health"`
}

// Load reads path and decodes it over a set of defaults, then validates
// the result. An empty path returns the defaults unchanged (matching
// the teacher's Load("")  behavior for the gateway's own config).
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		cfg.applyDefaults()
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Identity: IdentityConfig{KeystoreDir: "keystore"},
		Inet: InetConfig{
			Enabled:            true,
			SideChannelAddress: "127.0.0.1:9913",
			BindRatePerSecond:  200,
			BindBurst:          400,
		},
		Negotiator: NegotiatorConfig{
			MaxAgreements:    4,
			RuleFile:         "rules.json",
			IntakeRatePerSec: 50,
			IntakeBurst:      100,
		},
		Payment: PaymentConfig{
			DatabasePath:      "payments.db",
			RemoteCallTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			ServiceName: "provider-agent",
			Metrics:     true,
			Tracing:     true,
			metricsSet:  true,
			tracingSet:  true,
		},
		Health: HealthConfig{
			Address: "127.0.0.1:9914",
		},
	}
}

func (cfg *Config) applyDefaults() {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Identity.KeystoreDir) == "" {
		cfg.Identity.KeystoreDir = "keystore"
	}
	if strings.TrimSpace(cfg.Negotiator.RuleFile) == "" {
		cfg.Negotiator.RuleFile = "rules.json"
	}
	if cfg.Negotiator.MaxAgreements <= 0 {
		cfg.Negotiator.MaxAgreements = 4
	}
	if cfg.Negotiator.IntakeRatePerSec <= 0 {
		cfg.Negotiator.IntakeRatePerSec = 50
	}
	if cfg.Negotiator.IntakeBurst <= 0 {
		cfg.Negotiator.IntakeBurst = 100
	}
	if cfg.Inet.BindRatePerSecond <= 0 {
		cfg.Inet.BindRatePerSecond = 200
	}
	if cfg.Inet.BindBurst <= 0 {
		cfg.Inet.BindBurst = 400
	}
	if strings.TrimSpace(cfg.Payment.DatabasePath) == "" {
		cfg.Payment.DatabasePath = "payments.db"
	}
	if cfg.Payment.RemoteCallTimeout <= 0 {
		cfg.Payment.RemoteCallTimeout = 30 * time.Second
	}
	if !cfg.Observability.metricsSet {
		cfg.Observability.Metrics = true
	}
	if !cfg.Observability.tracingSet {
		cfg.Observability.Tracing = true
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "provider-agent"
	}
	if strings.TrimSpace(cfg.Health.Address) == "" {
		cfg.Health.Address = "127.0.0.1:9914"
	}
}

// Validate checks cross-field invariants that a bare decode can't catch.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Inet.Enabled && strings.TrimSpace(cfg.Inet.SideChannelAddress) == "" {
		return fmt.Errorf("inet.sideChannelAddress is required when inet.enabled is true")
	}
	if cfg.SignBus.DriverURL != "" && strings.TrimSpace(cfg.SignBus.DriverURL) == "" {
		return fmt.Errorf("signBus.driverUrl cannot be whitespace")
	}
	return nil
}

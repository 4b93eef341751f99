package negotiator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"provideragent/market/property"
	"provideragent/observability"
)

// DefaultIntakeRate and DefaultIntakeBurst size the token bucket
// guarding Run's intake when New is called with a nil limiter, mirroring
// the teacher's default rate/burst clamp for an unconfigured limit key
// (gateway/middleware/ratelimit.go).
const (
	DefaultIntakeRate  = 50
	DefaultIntakeBurst = 100
)

// Pipeline is a fixed, ordered composition of Components. Order is
// configuration-defined at construction and stable across restarts.
type Pipeline struct {
	components []Component
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// New builds a Pipeline over components in the given order and logs the
// resulting order once, matching the teacher's boot-time component-list
// logging idiom (cmd/consensusd/main.go). limiter gates how often Run
// may begin a fresh walk, capping proposal storms from a misbehaving or
// compromised market listener; a nil limiter falls back to
// DefaultIntakeRate/DefaultIntakeBurst.
func New(logger *slog.Logger, limiter *rate.Limiter, components ...Component) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(DefaultIntakeRate), DefaultIntakeBurst)
	}
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name()
	}
	logger.Info("negotiator pipeline configured", "components", names)
	return &Pipeline{components: components, logger: logger, limiter: limiter}
}

// Outcome is the terminal result of a full pipeline walk.
type Outcome struct {
	Decision Decision
}

// Run walks the components in order against (demand, offer). The first
// Reject wins and is returned immediately. A Negotiating result restarts
// the walk from the component immediately after the one that returned
// it, preventing the just-negotiated component from being re-entered in
// the same pass. A walk that reaches the end without a Reject is Ready.
// Each call first consumes a token from the intake limiter; a proposal
// arriving while the bucket is empty is rejected outright rather than
// queued or blocked on the limiter draining.
func (p *Pipeline) Run(ctx context.Context, demand, offer property.Set) (Outcome, error) {
	metrics := observability.Negotiator()
	proposalID := uuid.New().String()
	logger := p.logger.With("proposalId", proposalID)
	if !p.limiter.Allow() {
		metrics.RecordRateLimited()
		logger.Debug("pipeline rejected proposal: intake rate limited")
		return Outcome{Decision: RejectWith("negotiator: intake rate limited", true)}, nil
	}
	started := time.Now()
	current := offer
	start := 0
	for {
		restartAt := -1
		for i := start; i < len(p.components); i++ {
			comp := p.components[i]
			decision, err := comp.NegotiateStep(ctx, demand, current)
			if err != nil {
				return Outcome{}, err
			}
			metrics.RecordDecision(comp.Name(), decision.Kind.String())
			switch decision.Kind {
			case Reject:
				logger.Debug("pipeline rejected proposal", "component", comp.Name(), "final", decision.Final, "message", decision.Message)
				metrics.ObservePipeline("reject", time.Since(started))
				return Outcome{Decision: decision}, nil
			case Negotiating:
				logger.Debug("pipeline restarting after negotiation", "component", comp.Name())
				if decision.Offer != nil {
					current = decision.Offer
				}
				restartAt = i + 1
			case Ready:
				if decision.Offer != nil {
					current = decision.Offer
				}
			}
			if restartAt >= 0 {
				break
			}
		}
		if restartAt < 0 {
			metrics.ObservePipeline("ready", time.Since(started))
			return Outcome{Decision: ReadyWith(current)}, nil
		}
		start = restartAt
	}
}

// ComponentCount reports how many components this pipeline walks,
// mainly for boot-time logging.
func (p *Pipeline) ComponentCount() int {
	return len(p.components)
}

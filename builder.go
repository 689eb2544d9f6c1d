package goSession

import (
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/clock"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
)

// Builder collects the collaborators of a [Manager]. It is configured during
// initialization and consumed by a single call to [Builder.Build].
type Builder struct {
	config    Config
	provider  Provider
	clock     clock.Clock
	logger    *slog.Logger
	auditSink AuditSink
	onInvalid InvalidationHandler

	built bool
}

// New returns a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider. It is required.
func (b *Builder) WithProvider(p Provider) *Builder {
	b.provider = p
	return b
}

// WithClock overrides the scheduler. Tests pass a [clock.Manual].
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the sink for lifecycle events. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithInvalidationHandler sets the observer notified when a refresh fails.
func (b *Builder) WithInvalidationHandler(h InvalidationHandler) *Builder {
	b.onInvalid = h
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Manager]. A Builder can be
// built once.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if b.provider == nil {
		return nil, ErrProviderRequired
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var inspector *jwt.Inspector
	if cfg.Expiry.FromAccessToken {
		in, err := jwt.NewInspector(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.Expiry.SigningMethod),
			Secret:        cfg.Expiry.Secret,
			PublicKey:     cfg.Expiry.PublicKey,
		})
		if err != nil {
			return nil, fmt.Errorf("expiry inspector: %w", err)
		}
		inspector = in
	}

	clk := b.clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config:    cfg,
		provider:  b.provider,
		clock:     clk,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		inspector: inspector,
		onInvalid: b.onInvalid,
		subs:      make(map[*managedSubscription]struct{}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		ready: true,
	}

	b.built = true
	return m, nil
}

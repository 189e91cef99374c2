package chatauth

import (
	"errors"

	"github.com/MrEthical07/chatauth/internal/rate"
	"github.com/MrEthical07/chatauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from explicit dependencies. Construction is
// allocation-only until Build; no I/O happens before the first Engine call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  IdentityProvider
	connector Connector
	renderer  PromptRenderer
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing every store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the identity-provider collaborator.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithConnector sets the conversation-delivery collaborator.
func (b *Builder) WithConnector(c Connector) *Builder {
	b.connector = c
	return b
}

// WithPromptRenderer replaces the default channel-dispatch renderer.
func (b *Builder) WithPromptRenderer(r PromptRenderer) *Builder {
	b.renderer = r
	return b
}

// WithAuditSink sets the audit sink. Audit stays off unless enabled in the
// config as well.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMagicNumber toggles challenge mode.
func (b *Builder) WithMagicNumber(enabled bool) *Builder {
	b.config.MagicNumber.Enabled = enabled
	return b
}

// WithMetricsEnabled toggles the in-process metric counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can
// build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	// Unimplemented provider modes fail here: no partial work, no deferred
	// surprise on the first callback.
	if cfg.Provider.Mode == ModeB2C {
		return nil, ErrProviderUnimplemented
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if b.connector == nil {
		return nil, errors.New("connector required")
	}

	renderer := b.renderer
	if renderer == nil {
		renderer = NewCardPromptRenderer()
	}

	engine := &Engine{
		config:       cfg,
		correlations: newCorrelationStore(b.redis, cfg.Correlation.RedisPrefix, cfg.Correlation.TTL),
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix),
		provider:     b.provider,
		connector:    b.connector,
		renderer:     renderer,
		magic:        NewMagicNumberGenerator(nil, cfg.MagicNumber.Digits),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
	}

	if cfg.Security.EnableCallbackThrottle {
		engine.throttle = rate.New(b.redis, rate.Config{
			Enabled:       true,
			MaxAttempts:   cfg.Security.MaxCallbackAttempts,
			CooldownRange: cfg.Security.CallbackCooldown,
		})
	}

	b.built = true

	return engine, nil
}

package chatauth

import (
	"errors"
	"strings"
	"time"
)

// Config carries every tunable of the engine. Zero value is not usable;
// start from [DefaultConfig] or rely on [Builder] defaults.
type Config struct {
	Provider    ProviderConfig
	Prompt      PromptConfig
	MagicNumber MagicNumberConfig
	Correlation CorrelationConfig
	Session     SessionConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderMode selects the identity-provider protocol variant.
type ProviderMode string

const (
	// ModeV1 requests tokens for a single resource identifier.
	ModeV1 ProviderMode = "v1"
	// ModeV2 requests tokens for a scope list.
	ModeV2 ProviderMode = "v2"
	// ModeB2C is recognized but not implemented; Build fails fast.
	ModeB2C ProviderMode = "b2c"
)

// ProviderConfig names the protocol variant and what tokens are acquired for.
type ProviderConfig struct {
	Mode     ProviderMode
	Resource string
	Scopes   []string
}

/*
====================================
PROMPT CONFIG
====================================
*/

// PromptConfig controls the default login prompt text.
type PromptConfig struct {
	DefaultText string
}

/*
====================================
MAGIC NUMBER CONFIG
====================================
*/

// MagicNumberConfig controls the echoed-code second factor.
type MagicNumberConfig struct {
	Enabled bool
	Digits  int
}

/*
====================================
STORAGE CONFIG
====================================
*/

// CorrelationConfig controls the correlation store. TTL is the reaping policy
// for abandoned logins; zero disables expiry and orphans stay until deleted.
type CorrelationConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// SessionConfig controls the per-user session store and the retrying write
// protocol budget.
type SessionConfig struct {
	RedisPrefix      string
	MaxWriteAttempts int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls cancellation words and the callback throttle.
// Cancellation words are matched case-insensitively against the whole
// message text.
type SecurityConfig struct {
	CancellationWords      []string
	EnableCallbackThrottle bool
	MaxCallbackAttempts    int
	CallbackCooldown       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metric counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the Builder starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Mode: ModeV2,
		},
		Prompt: PromptConfig{
			DefaultText: "Please sign in to continue",
		},
		MagicNumber: MagicNumberConfig{
			Enabled: true,
			Digits:  6,
		},
		Correlation: CorrelationConfig{
			RedisPrefix: "acr",
			TTL:         15 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:      "aus",
			MaxWriteAttempts: 5,
		},
		Security: SecurityConfig{
			CancellationWords:      []string{"CANCEL", "QUIT", "STOP", "NEVERMIND", "ABORT"},
			EnableCallbackThrottle: false,
			MaxCallbackAttempts:    20,
			CallbackCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Provider.Mode {
	case ModeV1:
		if c.Provider.Resource == "" {
			return errors.New("Provider v1 mode requires a resource")
		}
	case ModeV2:
		if len(c.Provider.Scopes) == 0 {
			return errors.New("Provider v2 mode requires at least one scope")
		}
	case ModeB2C:
		return ErrProviderUnimplemented
	default:
		return errors.New("unknown provider mode")
	}

	if strings.TrimSpace(c.Prompt.DefaultText) == "" {
		return errors.New("Prompt DefaultText must not be empty")
	}

	if c.MagicNumber.Enabled {
		if c.MagicNumber.Digits < 6 || c.MagicNumber.Digits > 10 {
			return errors.New("MagicNumber Digits must be between 6 and 10")
		}
	}

	if c.Correlation.RedisPrefix == "" {
		return errors.New("Correlation RedisPrefix must not be empty")
	}
	if c.Correlation.TTL < 0 {
		return errors.New("Correlation TTL must not be negative")
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.MaxWriteAttempts < 1 {
		return errors.New("Session MaxWriteAttempts must be at least 1")
	}

	if c.Security.EnableCallbackThrottle {
		if c.Security.MaxCallbackAttempts < 1 {
			return errors.New("Security MaxCallbackAttempts must be at least 1")
		}
		if c.Security.CallbackCooldown <= 0 {
			return errors.New("Security CallbackCooldown must be positive")
		}
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Provider.Scopes = cloneStrings(cfg.Provider.Scopes)
	out.Security.CancellationWords = cloneStrings(cfg.Security.CancellationWords)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Package config loads the host configuration. Values are layered: built-in
// defaults, then the YAML file, then KARAJAN_* environment variables (a .env
// file next to the process is loaded first when present).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lsm/karajan/internal/source/poll"
	"github.com/lsm/karajan/internal/source/webhook"
	"github.com/lsm/karajan/internal/wasm"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "KARAJAN_"

const (
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

// Config is the complete host configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot" envPrefix:"BOT_"`
	Source    SourceConfig    `yaml:"source"`
	Guest     GuestConfig     `yaml:"guest"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	RateLimit RateLimitConfig `yaml:"rateLimit" envPrefix:"RATE_"`

	MetricsAddr     string `yaml:"metricsAddr" env:"METRICS_ADDR" validate:"required"`
	LogLevel        string `yaml:"logLevel" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	PropagateErrors bool   `yaml:"propagateErrors" env:"PROPAGATE_ERRORS"`
}

type BotConfig struct {
	Name   string `yaml:"name" env:"NAME" validate:"required"`
	Token  string `yaml:"token" env:"TOKEN" validate:"required"`
	APIURL string `yaml:"apiURL" env:"API_URL" validate:"required,url"`
}

// SourceConfig selects how updates arrive. Webhook fields are only read when
// Type is webhook.
type SourceConfig struct {
	Type        string        `yaml:"type" env:"SOURCE" validate:"oneof=poll webhook"`
	PollTimeout time.Duration `yaml:"pollTimeout" env:"POLL_TIMEOUT" validate:"gte=0"`
	MaxBackoff  time.Duration `yaml:"maxBackoff" env:"POLL_MAX_BACKOFF" validate:"gt=0"`

	ListenAddr string `yaml:"listenAddr" env:"WEBHOOK_ADDR" validate:"required_if=Type webhook"`
	Path       string `yaml:"path" env:"WEBHOOK_PATH" validate:"required_if=Type webhook"`
	Secret     string `yaml:"secret" env:"WEBHOOK_SECRET"`
	// PublicURL is registered with setWebhook. Empty leaves registration to
	// the operator.
	PublicURL string `yaml:"publicURL" env:"WEBHOOK_URL" validate:"omitempty,url"`
}

// GuestConfig points at the bot's WebAssembly module. An empty Module runs
// the built-in reply logic instead.
type GuestConfig struct {
	Module           string            `yaml:"module" env:"MODULE"`
	ABI              string            `yaml:"abi" env:"ABI" validate:"omitempty,oneof=wasi assemblyscript"`
	Runtime          string            `yaml:"runtime" env:"RUNTIME" validate:"omitempty,oneof=wazero wasmer"`
	Timeout          time.Duration     `yaml:"timeout" env:"GUEST_TIMEOUT" validate:"gte=0"`
	MemoryLimitPages uint32            `yaml:"memoryLimitPages" env:"GUEST_MEMORY_PAGES" validate:"lte=65536"`
	Env              map[string]string `yaml:"env" env:"GUEST_ENV"`
	Watch            bool              `yaml:"watch" env:"GUEST_WATCH"`
}

type StoreConfig struct {
	DSN    string `yaml:"dsn" env:"DSN"`
	Prefix string `yaml:"prefix" env:"PREFIX" validate:"identprefix"`
}

// RateLimitConfig bounds outgoing sendMessage calls. Zero disables a limit.
type RateLimitConfig struct {
	Global  float64 `yaml:"global" env:"GLOBAL" validate:"gte=0"`
	PerChat float64 `yaml:"perChat" env:"PER_CHAT" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Bot: BotConfig{
			Name:   "default",
			APIURL: "https://api.telegram.org",
		},
		Source: SourceConfig{
			Type:        SourcePoll,
			PollTimeout: 60 * time.Second,
			MaxBackoff:  60 * time.Second,
			ListenAddr:  ":8443",
			Path:        "/telegram",
		},
		Guest: GuestConfig{
			ABI:     string(wasm.ABIWASI),
			Runtime: string(wasm.RuntimeWazero),
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			DSN:    "memory",
			Prefix: "karajan_",
		},
		RateLimit: RateLimitConfig{
			Global:  30,
			PerChat: 1,
		},
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Load builds a Config from the YAML file at path (optional when empty) and
// the environment. envFiles are loaded with godotenv before the environment
// is read; missing files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Store prefixes end up in SQL table names.
	_ = v.RegisterValidation("identprefix", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return false
			}
		}
		return true
	})
	return v
}

// Validate checks field constraints and the guest runtime settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Guest.Module != "" {
		if err := c.WasmConfig().Validate(); err != nil {
			return fmt.Errorf("invalid config: guest: %w", err)
		}
	}
	return nil
}

func (c *Config) WasmConfig() wasm.Config {
	return wasm.Config{
		Type:             wasm.RuntimeType(c.Guest.Runtime),
		ModulePath:       c.Guest.Module,
		ABI:              wasm.ABI(c.Guest.ABI),
		MemoryLimitPages: c.Guest.MemoryLimitPages,
		Timeout:          c.Guest.Timeout,
		Env:              c.Guest.Env,
	}
}

func (c *Config) PollConfig() poll.Config {
	return poll.Config{
		Timeout:    c.Source.PollTimeout,
		MaxBackoff: c.Source.MaxBackoff,
	}
}

func (c *Config) WebhookConfig() webhook.Config {
	return webhook.Config{
		ListenAddr: c.Source.ListenAddr,
		Path:       c.Source.Path,
		Secret:     c.Source.Secret,
	}
}

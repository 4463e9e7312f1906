package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaSource string

// DefaultMaxSteps matches the #Config default for max_steps.
const DefaultMaxSteps = 1000

// Config is the decoded supervisor configuration.
type Config struct {
	LogLevel  string    `json:"log_level" env:"SUPERVISOR_LOG_LEVEL"`
	Journal   string    `json:"journal" env:"SUPERVISOR_JOURNAL"`
	MaxSteps  int       `json:"max_steps" env:"SUPERVISOR_MAX_STEPS"`
	Modules   []string  `json:"modules" env:"SUPERVISOR_MODULES" envSeparator:","`
	RateLimit RateLimit `json:"rate_limit" envPrefix:"SUPERVISOR_RATE_LIMIT_"`

	ActionTimeoutMS int `json:"action_timeout_ms" env:"SUPERVISOR_ACTION_TIMEOUT_MS"`
}

// ActionTimeout returns the configured chain deadline; zero means none.
func (c Config) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutMS) * time.Millisecond
}

// RateLimit configures the throttle middleware.
type RateLimit struct {
	RPS   float64 `json:"rps" env:"RPS"`
	Burst int     `json:"burst" env:"BURST"`
}

// Enabled reports whether throttling is configured.
func (r RateLimit) Enabled() bool {
	return r.RPS > 0 && r.Burst > 0
}

// schema is compiled once; a cue.Context is not safe for concurrent use.
var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	cueCtx     *cue.Context
	configDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		configDef = v.LookupPath(cue.ParsePath("#Config"))
		if !configDef.Exists() {
			schemaErr = fmt.Errorf("config schema: #Config not found")
		}
	})
	return cueCtx, configDef, schemaErr
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults invalid: %v", err))
	}
	return cfg
}

// Load reads and validates a CUE config file. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse unifies CUE source with the schema and decodes the result.
// filename is used for error positions only.
func Parse(filename string, src []byte) (Config, error) {
	ctx, def, err := loadSchema()
	if err != nil {
		return Config{}, err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %s", filename, details(err))
	}

	unified := def.Unify(file)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %s", filename, details(err))
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", filename, err)
	}
	if cfg.Modules == nil {
		cfg.Modules = []string{}
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SUPERVISOR_* environment variables.
// Unset variables leave the current values in place.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return c.Validate()
}

// Validate checks c against the schema constraints.
func (c Config) Validate() error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	if c.Modules == nil {
		c.Modules = []string{}
	}
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", details(err))
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}

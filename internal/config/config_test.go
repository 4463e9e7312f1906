package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.Journal)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, []string{}, cfg.Modules)
	assert.False(t, cfg.RateLimit.Enabled())
	assert.Zero(t, cfg.ActionTimeout())
}

func TestActionTimeout(t *testing.T) {
	cfg, err := Parse("supervisor.cue", []byte(`action_timeout_ms: 250`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.ActionTimeout())

	_, err = Parse("supervisor.cue", []byte(`action_timeout_ms: -1`))
	require.Error(t, err)
}

func TestParse_OverridesDefaults(t *testing.T) {
	src := `
log_level: "debug"
journal:   "trace.db"
max_steps: 50
modules: ["heroes", "messages"]
rate_limit: {
	rps:   2.5
	burst: 3
}
`
	cfg, err := Parse("supervisor.cue", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "trace.db", cfg.Journal)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.Equal(t, []string{"heroes", "messages"}, cfg.Modules)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled())
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestParse_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse("supervisor.cue", []byte(`rate_limit: rps: 1`))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, 1.0, cfg.RateLimit.RPS)
	assert.Equal(t, 0, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown log level", `log_level: "trace"`},
		{"zero max steps", `max_steps: 0`},
		{"negative burst", `rate_limit: burst: -1`},
		{"unknown field", `workers: 4`},
		{"wrong type", `modules: "heroes"`},
		{"syntax error", `max_steps: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad.cue")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.cue")
	require.NoError(t, os.WriteFile(path, []byte(`max_steps: 7`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxSteps)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SUPERVISOR_LOG_LEVEL", "warn")
	t.Setenv("SUPERVISOR_MAX_STEPS", "12")
	t.Setenv("SUPERVISOR_MODULES", "heroes,dashboard")
	t.Setenv("SUPERVISOR_RATE_LIMIT_RPS", "10")
	t.Setenv("SUPERVISOR_RATE_LIMIT_BURST", "5")

	cfg := Default()
	cfg.Journal = "from-file.db"
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-file.db", cfg.Journal, "unset variables keep file values")
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.Equal(t, []string{"heroes", "dashboard"}, cfg.Modules)
	assert.Equal(t, RateLimit{RPS: 10, Burst: 5}, cfg.RateLimit)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Run("unparseable", func(t *testing.T) {
		t.Setenv("SUPERVISOR_MAX_STEPS", "lots")
		cfg := Default()
		err := cfg.ApplyEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse env")
	})

	t.Run("fails schema", func(t *testing.T) {
		t.Setenv("SUPERVISOR_LOG_LEVEL", "loud")
		cfg := Default()
		err := cfg.ApplyEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}

func TestLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "nonsense"}.Level())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.Level())
}

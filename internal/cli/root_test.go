package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supervisor/internal/ir"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeFile writes content to name under a fresh temp dir.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "supervisor", cmd.Use)
	assert.Contains(t, cmd.Long, "middleware chain")
	assert.Equal(t, ir.EngineVersion, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "validate", "trace", "replay"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestJournalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "trace", "replay"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			flag := sub.Flags().Lookup("journal")
			require.NotNil(t, flag)
			assert.Equal(t, "", flag.DefValue)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	path := writeFile(t, "s.yaml", passingScenario)
	_, _, err := execute(t, "run", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestResolveSettings_ConfigFile(t *testing.T) {
	cfg := writeFile(t, "supervisor.cue", `
log_level: "debug"
max_steps: 25
modules: ["heroes"]
`)
	opts := &RootOptions{Config: cfg}
	require.NoError(t, opts.resolveSettings())

	assert.Equal(t, "debug", opts.Settings.LogLevel)
	assert.Equal(t, 25, opts.Settings.MaxSteps)
	assert.Equal(t, []string{"heroes"}, opts.Settings.Modules)
}

func TestResolveSettings_EnvOverridesFile(t *testing.T) {
	cfg := writeFile(t, "supervisor.cue", `max_steps: 25`)
	t.Setenv("SUPERVISOR_MAX_STEPS", "7")

	opts := &RootOptions{Config: cfg}
	require.NoError(t, opts.resolveSettings())
	assert.Equal(t, 7, opts.Settings.MaxSteps)
}

func TestResolveSettings_DotEnv(t *testing.T) {
	envFile := writeFile(t, "test.env", "SUPERVISOR_JOURNAL=from-dotenv.db\n")
	t.Setenv("SUPERVISOR_JOURNAL", "")
	require.NoError(t, os.Unsetenv("SUPERVISOR_JOURNAL"))

	opts := &RootOptions{EnvFile: envFile}
	require.NoError(t, opts.resolveSettings())
	assert.Equal(t, "from-dotenv.db", opts.Settings.Journal)
}

func TestResolveSettings_MissingEnvFileIgnored(t *testing.T) {
	opts := &RootOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")}
	require.NoError(t, opts.resolveSettings())
	assert.Equal(t, 1000, opts.Settings.MaxSteps)
}

func TestResolveSettings_InvalidConfig(t *testing.T) {
	cfg := writeFile(t, "bad.cue", `max_steps: 0`)
	opts := &RootOptions{Config: cfg}

	err := opts.resolveSettings()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveSettings_InvalidEnv(t *testing.T) {
	t.Setenv("SUPERVISOR_LOG_LEVEL", "loud")
	opts := &RootOptions{}

	err := opts.resolveSettings()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

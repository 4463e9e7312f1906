package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/supervisor/internal/catalog"
	"github.com/roach88/supervisor/internal/config"
	"github.com/roach88/supervisor/internal/harness"
)

// ValidationError is one problem found in a validated file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Path   string            `json:"path"`
	Kind   string            `json:"kind"`
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a scenario or config file without running it",
		Long: `Validate a scenario (.yaml, .yml) or a config file (.cue) without
building a store.

Scenarios are checked for required fields, well-formed steps and assertions,
and module names unknown to the catalog. Config files are unified with the
config schema and their module names are checked the same way.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var result ValidationResult
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		result = validateScenarioFile(path)
	case ".cue":
		result = validateConfigFile(path)
	default:
		msg := fmt.Sprintf("unsupported file type %q: expected .yaml, .yml, or .cue", filepath.Ext(path))
		_ = formatter.Error(ErrCodeInvalidFile, msg, map[string]string{"path": path})
		return NewExitError(ExitCommandError, msg)
	}
	formatter.VerboseLog("validated %s as %s", path, result.Kind)

	if result.Valid {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		formatter.Printf("✓ %s is valid (%s)\n", path, result.Kind)
		return nil
	}

	if formatter.JSON() {
		if err := formatter.Failure(result.Errors[0].Code, "validation failed", result); err != nil {
			return err
		}
	} else {
		formatter.Printf("✗ %s has %d error(s)\n", path, len(result.Errors))
		for _, e := range result.Errors {
			formatter.Printf("  [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s has %d validation error(s)", path, len(result.Errors)))
}

func validateScenarioFile(path string) ValidationResult {
	result := ValidationResult{Path: path, Kind: "scenario"}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{Field: "scenario", Message: err.Error(), Code: ErrCodeInvalidFile})
		return result
	}

	names := append([]string{}, scenario.Modules...)
	for _, step := range scenario.Steps {
		if step.Load != "" {
			names = append(names, step.Load)
		}
	}
	result.Errors = append(result.Errors, checkModules("modules", names)...)
	result.Valid = len(result.Errors) == 0
	return result
}

func validateConfigFile(path string) ValidationResult {
	result := ValidationResult{Path: path, Kind: "config"}

	cfg, err := config.Load(path)
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{Field: "config", Message: err.Error(), Code: ErrCodeInvalidFile})
		return result
	}

	result.Errors = append(result.Errors, checkModules("modules", cfg.Modules)...)
	result.Valid = len(result.Errors) == 0
	return result
}

// checkModules reports every name the catalog cannot resolve.
func checkModules(field string, names []string) []ValidationError {
	var errs []ValidationError
	for _, name := range names {
		if _, err := catalog.Lookup(name); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrCodeNotFound})
		}
	}
	return errs
}

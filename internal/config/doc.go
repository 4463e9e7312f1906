// Package config loads supervisor configuration.
//
// A config file is CUE. It is unified with the embedded #Config schema,
// which supplies defaults and constraints, and must be concrete after
// unification. Environment variables (SUPERVISOR_*) override file values
// and the result is checked against the schema again.
package config

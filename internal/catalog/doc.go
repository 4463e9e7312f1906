// Package catalog holds the demo modules the CLI, harness, and replay
// command run against: a main module with the PING → PONG effect and the
// heroes, messages, and dashboard feature modules.
//
// Feature modules are looked up by slice name so scenario files and
// journals can refer to them as plain strings.
package catalog

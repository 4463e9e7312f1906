// Package middleware provides reusable store middleware: structured
// logging, panic recovery, prometheus metrics, per-type throttling, and
// deferred-work timeouts.
//
// Every constructor returns an engine.Middleware. Register them on a
// MainModule or FeatureModule in the order they should see actions; the
// first one registered is outermost.
package middleware

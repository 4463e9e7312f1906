package testutil

import (
	"fmt"
	"sync"
)

// DefaultPrefix is used when a SequenceGenerator is created with an empty prefix.
const DefaultPrefix = "c"

// SequenceGenerator hands out correlation tokens "<prefix>-1", "<prefix>-2", ...
//
// The same scenario run against a fresh SequenceGenerator produces
// byte-identical journals, which is what golden traces rely on.
// Unlike engine.FixedGenerator it never runs out.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequenceGenerator creates a generator whose first token is "<prefix>-1".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next token. Implements engine.CorrelationGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued returns how many tokens have been generated.
func (g *SequenceGenerator) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence at "<prefix>-1".
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

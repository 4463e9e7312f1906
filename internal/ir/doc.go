// Package ir provides the value types shared by every supervisor package.
//
// This package contains plain data definitions only. All other internal
// packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Actions are immutable values; nothing in the engine mutates one after creation
//   - State is copy-on-write: reducers return new maps, never edit their input
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding used
//     for hashing and journaling
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir

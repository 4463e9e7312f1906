package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainState  = "supervisor/state/v1"
	DomainAction = "supervisor/action/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content hash of a state snapshot.
// Two states with the same canonical JSON always hash identically,
// which is what replay uses to check determinism.
func StateHash(s State) (string, error) {
	if s == nil {
		s = State{}
	}
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ActionHash computes the content hash of an action.
func ActionHash(a Action) (string, error) {
	canonical, err := MarshalCanonical(a)
	if err != nil {
		return "", fmt.Errorf("ActionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

package ir

// Version constants for the journal schema and engine.
const (
	// JournalVersion is the trace journal record format version.
	JournalVersion = "1"

	// EngineVersion is the supervisor engine version.
	EngineVersion = "0.1.0"
)

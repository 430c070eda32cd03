// Package constants defines shared configuration constants.
package constants

const (
	// MaxArtifactSize bounds the artifacts read by the read and patch commands.
	MaxArtifactSize = 1 << 30

	// MaxConfigSize bounds embed config documents.
	MaxConfigSize = 1 << 20

	// DefaultLogLevel is used when neither --log-level nor EnvLogLevel is set.
	DefaultLogLevel = "warn"

	// EnvLogLevel overrides the default log level.
	EnvLogLevel = "DECL_LOG_LEVEL"

	// DefaultGeneratedSource is the file written by `decl gen` without -o.
	DefaultGeneratedSource = "decl_note.c"
)

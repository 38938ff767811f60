package ir

// Version constants stamped on trace records.
const (
	// EncodingVersion is the version of the canonical plan encoding.
	EncodingVersion = "1"

	// EngineVersion is the rewrite engine version.
	EngineVersion = "0.1.0"
)

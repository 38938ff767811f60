package ir

// NOTE: These are trace-store records, not part of the plan encoding.
// Runs are keyed by run id, firings by their content address.

// RunRecord summarizes one rewrite run.
type RunRecord struct {
	ID              string `json:"id"`          // UUIDv7 run id
	PlanName        string `json:"plan_name"`   // Source description of the plan
	InputHash       string `json:"input_hash"`  // Plan fingerprint before rewriting
	OutputHash      string `json:"output_hash"` // Plan fingerprint after rewriting
	Outcome         string `json:"outcome"`     // Driver end state, e.g. "converged"
	Passes          int64  `json:"passes"`      // Passes executed
	MaxPasses       int64  `json:"max_passes"`  // Configured budget
	EngineVersion   string `json:"engine_version"`
	EncodingVersion string `json:"encoding_version"`
}

// FiringRecord is one hook invocation that reported a change.
type FiringRecord struct {
	ID      string `json:"id"` // Content-addressed (FiringID)
	RunID   string `json:"run_id"`
	Pass    int64  `json:"pass"`    // 1-based pass number
	Ordinal int64  `json:"ordinal"` // Position within the run
	Rule    string `json:"rule"`
	Hook    string `json:"hook"` // "pre" or "post"
	Op      int64  `json:"op"`   // Arena index of the visited operator
}

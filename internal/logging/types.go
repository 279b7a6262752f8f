package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: one rationale
// entry of one run.
type ProvenanceEntry struct {
	RunID      string
	Seq        int
	Stage      string
	Subject    string // pitch or lineage id, empty for run-level entries
	Decision   string // "accept" | "revise" | "forced_accept" | "drop" | "winner" | "degraded" | "failed" | "info"
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}
// #endregion provenance-entry

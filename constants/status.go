package constants

// DocStatus is the canonical lifecycle status for a document record.
type DocStatus string

// Stable values (these exact strings appear in snapshots and API responses).
const (
	StatusPending    DocStatus = "pending"    // record created, not yet picked up
	StatusProcessing DocStatus = "processing" // pipeline started
	StatusFully      DocStatus = "fully_indexed"
	StatusPartially  DocStatus = "partially_indexed"
	StatusFailed     DocStatus = "failed" // terminal: missing fields or a pipeline error
)

// Buckets lists the terminal statuses in listing order. Each has a storage
// directory of the same name; a terminal record's file lives in exactly the
// directory matching its status.
var Buckets = []DocStatus{StatusFully, StatusPartially, StatusFailed}

// Terminal reports whether s is one of the three bucket outcomes.
func (s DocStatus) Terminal() bool {
	switch s {
	case StatusFully, StatusPartially, StatusFailed:
		return true
	}
	return false
}

// ParseStatus maps a query-string value onto a known status.
func ParseStatus(v string) (DocStatus, bool) {
	switch DocStatus(v) {
	case StatusPending, StatusProcessing, StatusFully, StatusPartially, StatusFailed:
		return DocStatus(v), true
	}
	return "", false
}

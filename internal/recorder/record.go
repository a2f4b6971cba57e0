package recorder

import "time"

// AuditRecord is one line of the audit log: a request and how it ended.
type AuditRecord struct {
	Time       time.Time `json:"time"`
	RequestID  string    `json:"request_id"`
	Origin     string    `json:"origin"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`          // e.g. "Served", "OriginRejected"
	Status     int       `json:"status"`           // HTTP status sent
	Reason     string    `json:"reason,omitempty"` // internal detail, never sent to clients
	Failures   int       `json:"failures,omitempty"`
	Retries    int       `json:"retries,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	DurationMS float64   `json:"duration_ms"`
}

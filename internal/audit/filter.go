// Package audit queries the audit log written by the recorder.
package audit

import (
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/recorder"
)

// Filter selects audit records. Zero-valued fields match everything.
type Filter struct {
	Origins  []string  // exact origin match
	Outcomes []string  // case-insensitive outcome match
	Path     string    // substring of the request path
	After    time.Time // strictly after
	Before   time.Time // strictly before
}

// Match returns true if the record passes the filter.
func (f *Filter) Match(r recorder.AuditRecord) bool {
	if len(f.Origins) > 0 && !contains(f.Origins, r.Origin) {
		return false
	}
	if len(f.Outcomes) > 0 && !containsFold(f.Outcomes, r.Outcome) {
		return false
	}
	if f.Path != "" && !strings.Contains(r.Path, f.Path) {
		return false
	}
	if !f.After.IsZero() && !r.Time.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !r.Time.Before(f.Before) {
		return false
	}
	return true
}

// Apply returns the records that match, in their original order.
func (f *Filter) Apply(records []recorder.AuditRecord) []recorder.AuditRecord {
	out := make([]recorder.AuditRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(ss []string, s string) bool {
	for _, v := range ss {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

package audit

import (
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/recorder"
)

// Summary aggregates a set of audit records.
type Summary struct {
	Total       int                      `json:"total"`
	Served      int                      `json:"served"`
	Rejected    int                      `json:"rejected"`
	BytesServed int                      `json:"bytes_served"`
	First       time.Time                `json:"first,omitempty"`
	Last        time.Time                `json:"last,omitempty"`
	ByOutcome   map[string]int           `json:"by_outcome"`
	PerOrigin   map[string]OriginSummary `json:"per_origin"`
}

// OriginSummary has per-origin stats.
type OriginSummary struct {
	Served      int `json:"served"`
	Rejected    int `json:"rejected"`
	MaxFailures int `json:"max_failures"`
}

// Summarize aggregates records. A record counts as served when its status
// is 200 and its method is not a preflight.
func Summarize(records []recorder.AuditRecord) Summary {
	s := Summary{
		ByOutcome: make(map[string]int),
		PerOrigin: make(map[string]OriginSummary),
	}
	for _, r := range records {
		s.Total++
		s.ByOutcome[r.Outcome]++
		if s.First.IsZero() || r.Time.Before(s.First) {
			s.First = r.Time
		}
		if r.Time.After(s.Last) {
			s.Last = r.Time
		}

		per := s.PerOrigin[r.Origin]
		if r.Status >= 200 && r.Status < 300 {
			if r.Method != "OPTIONS" {
				s.Served++
				s.BytesServed += r.Bytes
				per.Served++
			}
		} else {
			s.Rejected++
			per.Rejected++
		}
		if r.Failures > per.MaxFailures {
			per.MaxFailures = r.Failures
		}
		s.PerOrigin[r.Origin] = per
	}
	return s
}

// Outcomes returns the outcome names in s sorted by descending count.
func (s Summary) Outcomes() []string {
	names := make([]string, 0, len(s.ByOutcome))
	for name := range s.ByOutcome {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ByOutcome[names[i]] != s.ByOutcome[names[j]] {
			return s.ByOutcome[names[i]] > s.ByOutcome[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Origins returns the origins in s in lexical order.
func (s Summary) Origins() []string {
	origins := make([]string, 0, len(s.PerOrigin))
	for o := range s.PerOrigin {
		origins = append(origins, o)
	}
	sort.Strings(origins)
	return origins
}

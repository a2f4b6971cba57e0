package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/audit"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/recorder"
)

func newAuditCmd() *cobra.Command {
	var (
		file       string
		origins    []string
		outcomes   []string
		path       string
		since      string
		until      string
		outputJSON bool
		summary    bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
		Long: `Reads the newline-delimited audit log written by "fuelgate serve",
prints matching records and a summary of outcomes per origin.

Times accept RFC 3339 (2024-01-01T15:04:05Z) or a duration relative to
now (30m, 24h).`,
		Example: `  fuelgate audit
  fuelgate audit --file /var/log/fuelgate/server.log --outcome LockedOut,CredentialInvalid
  fuelgate audit --origin 192.168.50.1 --since 24h --summary
  fuelgate audit --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			after, err := parseTimeBound(since, now)
			if err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			before, err := parseTimeBound(until, now)
			if err != nil {
				return fmt.Errorf("--until: %w", err)
			}

			records, err := recorder.ReadLogFile(file)
			if err != nil {
				return err
			}

			filter := &audit.Filter{
				Origins:  origins,
				Outcomes: outcomes,
				Path:     path,
				After:    after,
				Before:   before,
			}
			matched := filter.Apply(records)
			sum := audit.Summarize(matched)

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeAuditJSON(out, matched, sum, summary)
			}
			if !summary {
				for _, r := range matched {
					printRecord(out, r)
				}
				fmt.Fprintln(out)
			}
			printSummary(out, sum)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "server.log", "audit log file")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "only these client origins")
	cmd.Flags().StringSliceVar(&outcomes, "outcome", nil, "only these outcomes (e.g. Served,LockedOut)")
	cmd.Flags().StringVar(&path, "path", "", "only requests whose path contains this text")
	cmd.Flags().StringVar(&since, "since", "", "only records after this time")
	cmd.Flags().StringVar(&until, "until", "", "only records before this time")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the summary")

	return cmd
}

// parseTimeBound accepts RFC 3339 or a duration back from now. Empty
// means unbounded.
func parseTimeBound(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor a duration", s)
	}
	return now.Add(-d), nil
}

func writeAuditJSON(w io.Writer, records []recorder.AuditRecord, sum audit.Summary, summaryOnly bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if summaryOnly {
		return enc.Encode(sum)
	}
	if records == nil {
		records = []recorder.AuditRecord{}
	}
	return enc.Encode(map[string]any{
		"records": records,
		"summary": sum,
	})
}

func printRecord(w io.Writer, r recorder.AuditRecord) {
	line := fmt.Sprintf("%s  %-15s %-7s %-18s %d %s",
		r.Time.Format(time.RFC3339), r.Origin, r.Method, r.Outcome, r.Status, r.Path)
	if r.Failures > 0 {
		line += fmt.Sprintf(" failures=%d", r.Failures)
	}
	if r.Retries > 0 {
		line += fmt.Sprintf(" retries=%d", r.Retries)
	}
	if r.Bytes > 0 {
		line += fmt.Sprintf(" bytes=%d", r.Bytes)
	}
	fmt.Fprintln(w, line)
}

func printSummary(w io.Writer, s audit.Summary) {
	fmt.Fprintf(w, "Total: %d  Served: %d  Rejected: %d  Bytes served: %d\n",
		s.Total, s.Served, s.Rejected, s.BytesServed)
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(w, "Span: %s .. %s\n", s.First.Format(time.RFC3339), s.Last.Format(time.RFC3339))

	fmt.Fprintln(w, "\nBy outcome:")
	for _, name := range s.Outcomes() {
		fmt.Fprintf(w, "  %-20s %d\n", name, s.ByOutcome[name])
	}

	fmt.Fprintln(w, "\nPer origin:")
	for _, origin := range s.Origins() {
		o := s.PerOrigin[origin]
		fmt.Fprintf(w, "  %-15s served=%d rejected=%d max_failures=%d\n",
			origin, o.Served, o.Rejected, o.MaxFailures)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
)

// errBusy marks a 503 answer, the only status fetch retries.
var errBusy = errors.New("server busy")

type fetchOptions struct {
	url       string
	username  string
	password  string
	output    string
	timeout   time.Duration
	busyRetry int
	busyDelay time.Duration
}

func newFetchCmd() *cobra.Command {
	var o fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the CSV from a running fuelgate",
		Long: `Fetches the served CSV with Basic credentials, the way chart front ends do.
The body goes to --output or stdout. Any status other than 200 exits non-zero.

The password can also come from FUELGATE_FETCH_PASSWORD.`,
		Example: `  fuelgate fetch --password 's3cret'
  fuelgate fetch --url http://192.168.50.10:5314/server-fueldata.csv -o data.csv
  fuelgate fetch --busy-retries 3 --busy-delay 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.password == "" {
				o.password = os.Getenv("FUELGATE_FETCH_PASSWORD")
			}
			body, err := fetch(runContext(cmd), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if o.output == "" || o.output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(o.output, body, 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(body), o.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&o.url, "url", "http://127.0.0.1:5314/server-fueldata.csv", "resource URL")
	cmd.Flags().StringVar(&o.username, "username", "admin", "Basic auth username")
	cmd.Flags().StringVar(&o.password, "password", "", "Basic auth password")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write the body here instead of stdout")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 15*time.Second, "per-request timeout")
	cmd.Flags().IntVar(&o.busyRetry, "busy-retries", 0, "retry this many times when the server answers 503")
	cmd.Flags().DurationVar(&o.busyDelay, "busy-delay", time.Second, "delay between 503 retries")

	return cmd
}

// fetch GETs o.url and returns the body of a 200 response. 503 answers are
// retried at a fixed interval; every other non-200 status fails at once.
func fetch(ctx context.Context, o fetchOptions, status io.Writer) ([]byte, error) {
	client := &http.Client{Timeout: o.timeout}

	var body []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.SetBasicAuth(o.username, o.password)

		resp, err := client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("requesting %s: %w", o.url, err))
		}
		defer resp.Body.Close()

		fmt.Fprintf(status, "%s %s\n", resp.Proto, resp.Status)
		switch resp.StatusCode {
		case http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("reading body: %w", err))
			}
			return nil
		case http.StatusServiceUnavailable:
			return errBusy
		default:
			return backoff.Permanent(fmt.Errorf("server answered %s", resp.Status))
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.busyDelay), uint64(max(o.busyRetry, 0))),
		ctx,
	)
	if err := backoff.Retry(attempt, b); err != nil {
		if errors.Is(err, errBusy) {
			return nil, fmt.Errorf("server answered 503 Service Unavailable: %w", err)
		}
		return nil, err
	}
	return body, nil
}

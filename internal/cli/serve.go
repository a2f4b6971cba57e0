package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/config"
)

type serveOptions struct {
	configFile string
	envFile    string

	addr      string
	adminAddr string
	dir       string
	file      string
	marker    string
	allow     []string
	username  string
	password  string
	realm     string
	threshold int
	window    time.Duration
	retries   int
	delay     time.Duration
	auditFile string
	logLevel  string
	logFormat string
	storage   storageOptions
}

func newServeCmd() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the CSV file to allowlisted, authenticated clients",
		Long: `Starts the data endpoint.

Every GET passes the origin allowlist, then Basic authentication with a
per-origin lockout, then an exact path match against the served file, then
waits while the writer's busy marker is present. OPTIONS is answered
without credentials for cross-origin clients.

Configuration is read from defaults, the --config file, FUELGATE_*
environment variables (optionally loaded from --env-file), then flags.`,
		Example: `  fuelgate serve --password 's3cret'
  fuelgate serve --config fuelgate.yaml
  fuelgate serve --env-file .env --allow 192.168.50.1,10.1.0.0/16
  fuelgate serve --admin-addr 127.0.0.1:9314 --storage redis --redis-host redis:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolveConfig(cmd)
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger, clock.NewRealClock())
			if err != nil {
				return err
			}
			defer a.close()

			ln, adminLn, err := a.listen()
			if err != nil {
				return err
			}
			return a.serve(ctx, ln, adminLn)
		},
	}

	o.addFlags(cmd)

	return cmd
}

func (o *serveOptions) addFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.StringVar(&o.configFile, "config", "", "YAML or JSON config file")
	f.StringVar(&o.envFile, "env-file", "", "dotenv file loaded into the environment before FUELGATE_* variables are read")
	f.StringVar(&o.addr, "addr", d.Server.Addr, "address to listen on")
	f.StringVar(&o.adminAddr, "admin-addr", "", "address for /metrics, /healthz and /ws (empty disables)")
	f.StringVar(&o.dir, "dir", d.Resource.Dir, "directory holding the served file")
	f.StringVar(&o.file, "file", d.Resource.File, "name of the served CSV file")
	f.StringVar(&o.marker, "marker", "", "busy marker file (default <file>.lock)")
	f.StringSliceVar(&o.allow, "allow", d.Admission.AllowedOrigins, "allowed client IPs or CIDRs")
	f.StringVar(&o.username, "username", d.Admission.Username, "expected Basic auth username")
	f.StringVar(&o.password, "password", "", "expected Basic auth password")
	f.StringVar(&o.realm, "realm", d.Admission.Realm, "Basic auth realm")
	f.IntVar(&o.threshold, "lockout-threshold", d.Lockout.Threshold, "failed attempts before an origin is locked out")
	f.DurationVar(&o.window, "lockout-window", d.Lockout.Window, "how long failures count (0 = until restart)")
	f.IntVar(&o.retries, "retries", d.Availability.Retries, "busy-marker re-checks before answering 503")
	f.DurationVar(&o.delay, "retry-delay", d.Availability.Delay, "delay between busy-marker checks")
	f.StringVar(&o.auditFile, "audit-file", d.Audit.File, "append-only audit log (empty disables)")
	f.StringVar(&o.logLevel, "log-level", d.Log.Level, "log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", d.Log.Format, "log format (json, console)")
	o.storage.addFlags(cmd)
}

// resolveConfig layers defaults, file, environment and explicit flags.
func (o *serveOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return config.Config{}, fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if f.Changed("admin-addr") {
		cfg.Server.AdminAddr = o.adminAddr
	}
	if f.Changed("dir") {
		cfg.Resource.Dir = o.dir
	}
	if f.Changed("file") {
		cfg.Resource.File = o.file
	}
	if f.Changed("marker") {
		cfg.Resource.Marker = o.marker
	}
	if f.Changed("allow") {
		cfg.Admission.AllowedOrigins = append([]string(nil), o.allow...)
	}
	if f.Changed("username") {
		cfg.Admission.Username = o.username
	}
	if f.Changed("password") {
		cfg.Admission.Password = o.password
		cfg.Admission.PasswordHash = ""
	}
	if f.Changed("realm") {
		cfg.Admission.Realm = o.realm
	}
	if f.Changed("lockout-threshold") {
		cfg.Lockout.Threshold = o.threshold
	}
	if f.Changed("lockout-window") {
		cfg.Lockout.Window = o.window
	}
	if f.Changed("retries") {
		cfg.Availability.Retries = o.retries
	}
	if f.Changed("retry-delay") {
		cfg.Availability.Delay = o.delay
	}
	if f.Changed("audit-file") {
		cfg.Audit.File = o.auditFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if err := o.storage.applyTo(cmd, &cfg.Storage); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runContext returns ctx or a background context for commands invoked
// without one.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

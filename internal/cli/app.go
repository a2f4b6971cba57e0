package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/admission"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/attempts"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/availability"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/config"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/recorder"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/resource"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/server"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// app is one fully wired Fuelgate process.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   storage.Storage
	rec     *recorder.Recorder
	watcher *availability.Watcher
	srv     *server.Server
	admin   *server.AdminServer
	detach  func()
}

// newApp builds every component from cfg. ctx bounds background work
// (storage sweeps, the marker watcher). Call close when done.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, clk clock.Clock) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	clk = clock.OrReal(clk)
	a := &app{cfg: cfg, logger: logger, detach: func() {}}

	allowlist, err := admission.ParseAllowlist(cfg.Admission.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	if allowlist.Len() == 0 {
		logger.Warn().Msg("allowed origin list is empty, every request will get 403")
	}

	a.store, err = createAttemptStore(ctx, cfg, clk, logger.With().Str("component", "storage").Logger())
	if err != nil {
		return nil, err
	}
	tracker, err := attempts.New(a.store, cfg.Lockout.Threshold, cfg.Lockout.Window)
	if err != nil {
		a.close()
		return nil, err
	}
	gate, err := admission.NewGate(allowlist, newVerifier(cfg.Admission), tracker)
	if err != nil {
		a.close()
		return nil, err
	}

	resolver, err := resource.NewResolver(cfg.Resource.Dir, cfg.Resource.File)
	if err != nil {
		a.close()
		return nil, err
	}
	markerPath := cfg.Resource.MarkerPath()
	coord, err := availability.NewCoordinator(
		availability.MarkerFile{Path: markerPath},
		availability.Policy{Retries: cfg.Availability.Retries, Delay: cfg.Availability.Delay},
		availability.WithClock(clk),
		availability.WithLogger(logger.With().Str("component", "availability").Logger()),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	a.rec = openRecorder(cfg.Audit.File, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(reg)

	watchLog := logger.With().Str("component", "watcher").Logger()
	a.watcher, err = availability.NewWatcher(markerPath, metrics.SetWriterBusy, watchLog)
	if err != nil {
		// The watcher only feeds metrics; serving works without it.
		watchLog.Warn().Err(err).Msg("marker watcher disabled")
		a.watcher = nil
	} else {
		go func() {
			if err := a.watcher.Run(ctx); err != nil {
				watchLog.Warn().Err(err).Msg("marker watcher stopped")
			}
		}()
	}

	a.srv, err = server.New(cfg.Server.Addr, server.Deps{
		Gate:        gate,
		Resolver:    resolver,
		Coordinator: coord,
		Recorder:    a.rec,
	},
		server.WithClock(clk),
		server.WithLogger(logger.With().Str("component", "server").Logger()),
		server.WithMetrics(metrics),
		server.WithRealm(cfg.Admission.Realm),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Server.AdminAddr != "" {
		adminLog := logger.With().Str("component", "admin").Logger()
		hub := server.NewHub(adminLog)
		a.detach = hub.Attach(a.rec)
		var writerBusy func() bool
		if a.watcher != nil {
			writerBusy = a.watcher.Busy
		}
		a.admin = server.NewAdmin(server.AdminConfig{
			Addr:       cfg.Server.AdminAddr,
			Gatherer:   reg,
			Hub:        hub,
			Clock:      clk,
			Logger:     adminLog,
			WriterBusy: writerBusy,
		})
	}

	logger.Info().
		Str("resource", resolver.Path()).
		Str("marker", markerPath).
		Int("allowed_origins", allowlist.Len()).
		Int("lockout_threshold", tracker.Threshold()).
		Dur("lockout_window", cfg.Lockout.Window).
		Int("retries", cfg.Availability.Retries).
		Dur("retry_delay", cfg.Availability.Delay).
		Bool("hashed_password", cfg.Admission.PasswordHash != "").
		Msg("fuelgate configured")
	return a, nil
}

func newVerifier(c config.AdmissionConfig) admission.Verifier {
	if c.PasswordHash != "" {
		return admission.HashVerifier{Username: c.Username, Hash: c.PasswordHash}
	}
	return admission.PlainVerifier{Username: c.Username, Password: c.Password, ConstantTime: c.ConstantTime}
}

// openRecorder opens the audit file. Failure to open it is not fatal:
// records still reach live subscribers.
func openRecorder(path string, logger zerolog.Logger) *recorder.Recorder {
	if path == "" {
		return recorder.New(nil)
	}
	rec, err := recorder.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("file", path).Msg("audit log unavailable, continuing without it")
		return recorder.New(nil)
	}
	return rec
}

// listen binds the data listener and, when configured, the admin one.
// A bind failure is the only fatal runtime error.
func (a *app) listen() (net.Listener, net.Listener, error) {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("binding %s: %w", a.cfg.Server.Addr, err)
	}
	if a.admin == nil {
		return ln, nil, nil
	}
	adminLn, err := net.Listen("tcp", a.cfg.Server.AdminAddr)
	if err != nil {
		_ = ln.Close()
		return nil, nil, fmt.Errorf("binding admin %s: %w", a.cfg.Server.AdminAddr, err)
	}
	return ln, adminLn, nil
}

// serve runs until ctx is cancelled, then drains both listeners.
func (a *app) serve(ctx context.Context, ln, adminLn net.Listener) error {
	errCh := make(chan error, 2)
	go func() { errCh <- a.srv.StartOnListener(ln) }()
	if a.admin != nil && adminLn != nil {
		go func() { errCh <- a.admin.StartOnListener(adminLn) }()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.srv.Shutdown(shutdownCtx)
	if a.admin != nil {
		if aerr := a.admin.Shutdown(shutdownCtx); err == nil {
			err = aerr
		}
	}
	return err
}

func (a *app) close() {
	if a.detach != nil {
		a.detach()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.rec != nil {
		if err := a.rec.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing audit log")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing attempt storage")
		}
	}
}

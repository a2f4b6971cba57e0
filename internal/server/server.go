package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/admission"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/availability"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/recorder"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/resource"
)

// DefaultRealm is the Basic auth realm sent with 401 responses.
const DefaultRealm = "Secure DCS Data"

// Preflight response headers.
const (
	allowMethods = "GET, OPTIONS"
	allowHeaders = "Authorization, Content-Type"
	maxAge       = "86400"
)

// Deps are the pipeline stages a Server runs for every GET.
type Deps struct {
	Gate        *admission.Gate
	Resolver    *resource.Resolver
	Coordinator *availability.Coordinator
	Recorder    *recorder.Recorder
}

// Server serves the single CSV resource. It dispatches on method itself
// rather than through a ServeMux, which would redirect unclean paths before
// the resolver could judge them.
type Server struct {
	httpServer *http.Server
	deps       Deps
	clock      clock.Clock
	logger     zerolog.Logger
	metrics    *Metrics
	realm      string
	readFile   func(string) ([]byte, error)
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for audit timestamps and durations.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = clock.OrReal(c) }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics the server updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRealm sets the realm advertised in WWW-Authenticate.
func WithRealm(realm string) Option {
	return func(s *Server) {
		if realm != "" {
			s.realm = realm
		}
	}
}

// New creates a Fuelgate server listening on addr.
func New(addr string, deps Deps, opts ...Option) (*Server, error) {
	switch {
	case deps.Gate == nil:
		return nil, fmt.Errorf("gate is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("resolver is required")
	case deps.Coordinator == nil:
		return nil, fmt.Errorf("coordinator is required")
	case deps.Recorder == nil:
		return nil, fmt.Errorf("recorder is required")
	}

	s := &Server{
		deps:     deps,
		clock:    clock.NewRealClock(),
		logger:   zerolog.Nop(),
		realm:    DefaultRealm,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           RecoverMiddleware(s, s.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Metrics returns the collectors this server updates.
func (s *Server) Metrics() *Metrics { return s.metrics }

// exchange accumulates what happened to one request.
type exchange struct {
	id       string
	origin   string
	outcome  Outcome
	reason   string
	failures int
	retries  int
}

// ServeHTTP runs the request pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()
	rw := &responseWriter{ResponseWriter: w}
	ex := &exchange{id: uuid.NewString(), origin: clientOrigin(r)}

	switch r.Method {
	case http.MethodGet:
		s.serveResource(rw, r, ex)
	case http.MethodOptions:
		s.servePreflight(rw, ex)
	default:
		ex.outcome = MethodUnsupported
		s.reject(rw, ex)
	}

	s.finish(rw, r, ex, start)
}

func (s *Server) serveResource(w *responseWriter, r *http.Request, ex *exchange) {
	ctx := r.Context()

	res := s.deps.Gate.Admit(ctx, ex.origin, r.Header.Get("Authorization"))
	ex.failures = res.Failures
	if res.Err != nil {
		ex.reason = res.Err.Error()
	}
	if res.Decision != admission.Allow {
		ex.outcome = outcomeForDecision(res.Decision)
		s.reject(w, ex)
		return
	}
	if res.Err != nil {
		s.logger.Warn().Err(res.Err).Str("origin", ex.origin).Msg("failed to reset failure count")
	}

	path, err := s.deps.Resolver.Resolve(r.URL.EscapedPath())
	if err != nil {
		ex.outcome = PathRejected
		ex.reason = err.Error()
		s.reject(w, ex)
		return
	}

	waits, err := s.deps.Coordinator.AwaitAvailable(ctx)
	ex.retries = waits
	s.metrics.BusyWaits.Add(float64(waits))
	if err != nil {
		ex.outcome = ResourceBusy
		ex.reason = err.Error()
		s.reject(w, ex)
		return
	}

	data, err := s.readFile(path)
	if err != nil {
		ex.reason = err.Error()
		if errors.Is(err, os.ErrNotExist) {
			ex.outcome = ResourceMissing
		} else {
			ex.outcome = ResourceUnreadable
		}
		s.reject(w, ex)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		ex.outcome = TransportError
		ex.reason = err.Error()
		return
	}
	ex.outcome = Served
}

func (s *Server) servePreflight(w *responseWriter, ex *exchange) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Max-Age", maxAge)
	w.WriteHeader(http.StatusOK)
	ex.outcome = Preflight
}

// reject writes the status for ex.outcome. 401s carry the challenge and
// an empty body.
func (s *Server) reject(w *responseWriter, ex *exchange) {
	status := ex.outcome.Status()
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.realm))
		w.WriteHeader(status)
		return
	}
	http.Error(w, ex.outcome.Message(), status)
}

func (s *Server) finish(w *responseWriter, r *http.Request, ex *exchange, start time.Time) {
	elapsed := s.clock.Since(start)
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	s.metrics.Requests.WithLabelValues(ex.outcome.String()).Inc()
	s.metrics.Duration.WithLabelValues(ex.outcome.String()).Observe(elapsed.Seconds())

	ev := s.logger.Info()
	switch ex.outcome {
	case ResourceUnreadable, TransportError:
		ev = s.logger.Error()
	case OriginRejected, CredentialInvalid, LockedOut, PathRejected, ResourceBusy:
		ev = s.logger.Warn()
	}
	ev.Str("request_id", ex.id).
		Str("origin", ex.origin).
		Str("method", r.Method).
		Str("path", r.URL.EscapedPath()).
		Str("outcome", ex.outcome.String()).
		Int("status", status).
		Str("reason", ex.reason).
		Int("failures", ex.failures).
		Int("retries", ex.retries).
		Dur("duration", elapsed).
		Msg("request")

	rec := recorder.AuditRecord{
		Time:       start.UTC(),
		RequestID:  ex.id,
		Origin:     ex.origin,
		Method:     r.Method,
		Path:       r.URL.EscapedPath(),
		Outcome:    ex.outcome.String(),
		Status:     status,
		Reason:     ex.reason,
		Failures:   ex.failures,
		Retries:    ex.retries,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	if ex.outcome == Served || ex.outcome == TransportError {
		rec.Bytes = w.bytes
	}
	if err := s.deps.Recorder.Record(rec); err != nil {
		s.metrics.AuditErrors.Inc()
		s.logger.Warn().Err(err).Str("request_id", ex.id).Msg("audit write failed")
	}
}

// clientOrigin is the peer IP with the port stripped. Forwarding headers
// are ignored: the allowlist is about the directly connected peer.
func clientOrigin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("resource", s.deps.Resolver.Path()).
		Msg("fuelgate listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
)

// AdminServer is the operator listener: metrics, health and the live
// audit stream. It never serves the CSV.
type AdminServer struct {
	httpServer *http.Server
	mux        *http.ServeMux
	hub        *Hub
	clock      clock.Clock
	logger     zerolog.Logger
	writerBusy func() bool
}

// AdminConfig configures an AdminServer.
type AdminConfig struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Hub      *Hub
	Clock    clock.Clock
	Logger   zerolog.Logger
	// WriterBusy reports the marker state for /healthz. Optional.
	WriterBusy func() bool
}

// NewAdmin creates the admin server.
func NewAdmin(cfg AdminConfig) *AdminServer {
	a := &AdminServer{
		mux:        http.NewServeMux(),
		hub:        cfg.Hub,
		clock:      clock.OrReal(cfg.Clock),
		logger:     cfg.Logger,
		writerBusy: cfg.WriterBusy,
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	a.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	a.mux.HandleFunc("/healthz", a.handleHealth)
	if a.hub != nil {
		a.mux.HandleFunc("/ws", a.hub.HandleWebSocket)
	}
	a.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           RecoverMiddleware(a.mux, cfg.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Handler returns the admin routes, for tests.
func (a *AdminServer) Handler() http.Handler { return a.httpServer.Handler }

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"time":   a.clock.Now().UTC().Format(time.RFC3339),
	}
	if a.writerBusy != nil {
		body["writer_busy"] = a.writerBusy()
	}
	if a.hub != nil {
		body["stream_clients"] = a.hub.ClientCount()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Start begins listening. It blocks until the server is shut down.
func (a *AdminServer) Start() error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return err
	}
	return a.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
func (a *AdminServer) StartOnListener(ln net.Listener) error {
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("admin listener up")
	return a.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

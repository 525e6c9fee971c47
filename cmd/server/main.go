package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/scenario"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/index.html
var templateFS embed.FS

// ClientMessage is a command from the browser
type ClientMessage struct {
	Type   string             `json:"type"` // start | pause | reset | config_update
	Config *correlator.Config `json:"config,omitempty"`
}

// ServerMessage is pushed to the browser
type ServerMessage struct {
	Type     string                      `json:"type"` // status | metrics | records | entities | summary | error
	Running  *bool                       `json:"running,omitempty"`
	Config   *correlator.Config          `json:"config,omitempty"`
	Metrics  *correlator.Metrics         `json:"metrics,omitempty"`
	Records  []correlator.EventRecord    `json:"records,omitempty"`
	Entities []correlator.EntitySnapshot `json:"entities,omitempty"`
	Cells    []correlator.CellSnapshot   `json:"cells,omitempty"`
	Summary  []correlator.FlowSummary    `json:"summary,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// server holds what every connection shares. Each connection gets its own
// session; only the Prometheus gauges are global.
type server struct {
	base         scenario.Config
	logger       logging.Logger
	metrics      *viewerMetrics
	tmpl         *template.Template
	tickInterval time.Duration // wall time per virtual second
	quit         chan struct{}
	quitOnce     sync.Once
}

// pace advances the session one virtual second per tick until ctx ends or
// a write fails
func (srv *server) pace(ctx context.Context, conn *viewerConn, sess *session) {
	ticker := time.NewTicker(srv.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		u, ok := sess.advance(1.0)
		if !ok {
			continue
		}
		srv.metrics.updatePrometheusMetrics(u.metrics)
		if err := conn.sendTick(u); err != nil {
			srv.logger.Warn("viewer update failed", logging.Err(err))
			return
		}
	}
}

func (srv *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}
	defer ws.Close()
	conn := &viewerConn{ws: ws}
	log := srv.logger.With(logging.String("remote", r.RemoteAddr))

	sess, err := newSession(srv.base, log)
	if err != nil {
		log.Error("building viewer run", logging.Err(err))
		_ = conn.sendError(err)
		return
	}
	defer sess.close()

	srv.metrics.clientConnected()
	defer srv.metrics.clientDisconnected()
	log.Info("viewer connected")
	defer log.Info("viewer disconnected")

	if err := conn.send(sess.status()); err != nil {
		return
	}

	// The request context is not cancelled for hijacked connections
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.pace(ctx, conn, sess)

	for {
		var msg ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("viewer read failed", logging.Err(err))
			}
			return
		}
		log.Debug("viewer command", logging.String("type", msg.Type))

		if err := sess.apply(msg); err != nil {
			log.Warn("viewer command rejected", logging.String("type", msg.Type), logging.Err(err))
			_ = conn.sendError(err)
			continue
		}
		_ = conn.send(sess.status())
	}
}

func (srv *server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := srv.tmpl.Execute(w, nil); err != nil {
		srv.logger.Error("error executing template", logging.Err(err))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (srv *server) quitHandler(w http.ResponseWriter, r *http.Request) {
	srv.quitOnce.Do(func() {
		srv.logger.Info("quit requested", logging.String("remote", r.RemoteAddr))
		close(srv.quit)
	})
	fmt.Fprintln(w, "bye")
}

func newServer(base scenario.Config, logger logging.Logger, reg *prometheus.Registry) (*server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	metrics, err := newViewerMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &server{
		base:         base,
		logger:       logger,
		metrics:      metrics,
		tmpl:         tmpl,
		tickInterval: 500 * time.Millisecond,
		quit:         make(chan struct{}),
	}, nil
}

func (srv *server) routes(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.serveHome)
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/quitquitquit", srv.quitHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	configFile := flag.String("config", "", "Path to scenario file (.json, .yaml); defaults are used when empty")
	flag.Parse()

	base := scenario.Default()
	if *configFile != "" {
		loaded, err := scenario.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scenario: %v\n", err)
			os.Exit(1)
		}
		base = loaded
	}
	base.Logging = logging.ConfigFromEnv(base.Logging)
	logger := logging.New(base.Logging)

	if err := base.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid scenario: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	srv, err := newServer(base, logger, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	httpServer := &http.Server{Addr: *addr, Handler: srv.routes(reg)}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
		case <-srv.quit:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting",
		logging.String("url", "http://localhost"+*addr),
		logging.String("websocket", "ws://localhost"+*addr+"/ws"),
		logging.String("metrics", "http://localhost"+*addr+"/metrics"))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/boardflow"
	"github.com/BaSui01/boardflow/config"
	"github.com/BaSui01/boardflow/deliberation"
	"github.com/BaSui01/boardflow/internal/metrics"
	"github.com/BaSui01/boardflow/internal/telemetry"
	"github.com/BaSui01/boardflow/memory"
	"github.com/BaSui01/boardflow/stream"
	"github.com/BaSui01/boardflow/types"
)

// runServe exposes deliberations over HTTP: POST /deliberate runs a session
// with the demo committee, GET /stream subscribes a WebSocket client to
// sealed rounds and decisions, and the archive is queryable under /decisions.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	storeType := fs.String("store", "memory", "Decision store backend: memory, redis or sqlite")
	minutesDir := fs.String("minutes", "", "Directory for markdown minutes (disabled when empty)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(providers, logger)

	store, err := memory.NewDecisionStore(storeConfig(cfg, *storeType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create decision store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	srv := &server{
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "server")),
		store:        store,
		storeBackend: *storeType,
		collector:    metrics.NewCollector("boardflow", logger),
		broadcaster:  stream.NewBroadcaster(logger),
		minutesDir:   *minutesDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		os.Exit(1)
	}
}

type server struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        memory.DecisionStore
	storeBackend string
	collector    *metrics.Collector
	broadcaster  *stream.Broadcaster
	minutesDir   string
}

// run serves the API and the Prometheus endpoint until the context is
// cancelled, then drains both listeners.
func (s *server) run(ctx context.Context) error {
	api := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.StreamPort),
		Handler: s.routes(),
		// Stream subscribers hold the connection open, so only the
		// header read is bounded here.
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
	}
	metricsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		Handler:      metricsHandler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("api listening", zap.String("addr", api.Addr))
		if err := api.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.broadcaster.Close()
		return errors.Join(
			api.Shutdown(shutdownCtx),
			metricsSrv.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /deliberate", s.handleDeliberate)
	mux.HandleFunc("GET /decisions", s.handleListDecisions)
	mux.HandleFunc("GET /decisions/{id}", s.handleGetDecision)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// handleDeliberate runs one deliberation synchronously and returns the
// decision. The request body carries the proposal; an empty body runs the
// bundled demo proposal.
func (s *server) handleDeliberate(w http.ResponseWriter, r *http.Request) {
	proposal := demoProposal()
	if r.ContentLength != 0 {
		proposal = &deliberation.Proposal{}
		if err := json.NewDecoder(r.Body).Decode(proposal); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid proposal: %v", err))
			return
		}
		if proposal.ID == "" {
			writeError(w, http.StatusBadRequest, "proposal is missing an id")
			return
		}
	}

	opts := []boardflow.Option{
		boardflow.WithConfig(s.cfg.Deliberation.Engine()),
		boardflow.WithLogger(s.logger),
		boardflow.WithDecisionStore(s.store),
		boardflow.WithObserver(s.broadcaster),
		boardflow.WithObserver(s.collector.Observer()),
	}
	if s.minutesDir != "" {
		opts = append(opts, boardflow.WithMinutesDir(s.minutesDir))
	}

	decision, err := boardflow.Deliberate(r.Context(), proposal, demoCommittee(), opts...)
	if err != nil {
		if types.IsErrorCode(err, types.ErrSessionAborted) {
			writeError(w, http.StatusRequestTimeout, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	filter := memory.DecisionFilter{
		ProposalID: r.URL.Query().Get("proposal_id"),
		Outcome:    deliberation.Outcome(r.URL.Query().Get("outcome")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	start := time.Now()
	decisions, err := s.store.List(r.Context(), filter)
	s.collector.RecordStoreOperation(s.storeBackend, "list", err, time.Since(start))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	decision, err := s.store.Get(r.Context(), r.PathValue("id"))
	s.collector.RecordStoreOperation(s.storeBackend, "get", err, time.Since(start))
	if err != nil {
		if types.IsErrorCode(err, types.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handleStream upgrades the request and subscribes the client to every round
// and decision the server seals. The read loop only pumps control frames;
// inbound messages are discarded.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	conn := stream.NewWebSocketEventConnection(wsConn, s.logger)
	s.broadcaster.Subscribe(id, conn)
	defer func() {
		s.broadcaster.Unsubscribe(id)
		conn.Close()
	}()

	for {
		if _, err := conn.ReadEvent(r.Context()); err != nil {
			return
		}
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"store":   s.storeBackend,
		"version": Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package api provides the HTTP layer over the signal pipeline. Training
// and backtesting are relayed to the pipeline CLIs as subprocesses; the
// server itself only computes factor previews and serves metadata.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Buezw/HFT-Research/internal/artifact"
	"github.com/Buezw/HFT-Research/internal/config"
	"github.com/Buezw/HFT-Research/internal/dashboard"
	"github.com/Buezw/HFT-Research/internal/dataset"
	"github.com/Buezw/HFT-Research/internal/factor"
	"github.com/Buezw/HFT-Research/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	cfg        *config.Config
	router     *mux.Router
	httpServer *http.Server
	factors    *factor.Registry
	models     *model.Registry
	runner     *CmdRunner
	index      *artifact.Index
	reviewer   *dashboard.Reviewer
	hub        *Hub
	metrics    *Metrics
	// runLimiter bounds how fast train/backtest subprocesses are spawned.
	runLimiter *rate.Limiter
}

// NewServer wires the API server together.
func NewServer(logger *zap.Logger, cfg *config.Config, factors *factor.Registry, models *model.Registry, index *artifact.Index) *Server {
	metrics := NewMetrics()
	s := &Server{
		logger:     logger,
		cfg:        cfg,
		router:     mux.NewRouter(),
		factors:    factors,
		models:     models,
		runner:     NewCmdRunner(logger, cfg.Commands.TrainBin, cfg.Commands.BacktestBin, metrics),
		index:      index,
		reviewer:   dashboard.NewReviewer(logger, cfg.Fees.MakerBps, cfg.Fees.TakerBps),
		hub:        NewHub(logger),
		metrics:    metrics,
		runLimiter: rate.NewLimiter(rate.Limit(float64(cfg.Server.RunRatePerMin)/60), 2),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/factors", s.handleFactors).Methods("GET")
	s.router.HandleFunc("/api/models", s.handleModels).Methods("GET")
	s.router.HandleFunc("/api/compute", s.handleCompute).Methods("GET")
	s.router.HandleFunc("/api/train", s.handleTrain).Methods("GET", "POST")
	s.router.HandleFunc("/api/backtest", s.handleBacktest).Methods("GET", "POST")
	s.router.HandleFunc("/api/runs", s.handleRuns).Methods("GET")
	s.router.HandleFunc("/api/dashboard/pnl", s.handleDashboardPnL).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
}

// Start runs the hub and the HTTP listener; it blocks until the listener
// stops.
func (s *Server) Start() error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", s.cfg.Addr()))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleFactors returns registered factors grouped by category. Metadata
// only; compute functions are never serialized.
func (s *Server) handleFactors(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("factors")
	grouped := make(map[string]map[string]factor.Meta)
	for cat, metas := range s.factors.ByCategory() {
		group := make(map[string]factor.Meta, len(metas))
		for _, m := range metas {
			group[m.Name] = m
		}
		grouped[cat] = group
	}
	writeJSON(w, http.StatusOK, grouped)
}

// handleModels returns registered model metadata; constructors are never
// serialized.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("models")
	safe := make(map[string]model.Meta)
	for _, m := range s.models.Metadata() {
		safe[m.Name] = m
	}
	writeJSON(w, http.StatusOK, safe)
}

// handleCompute evaluates one factor in-process and returns its series for
// preview plots.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("compute")
	name := r.URL.Query().Get("factor")
	if name == "" {
		httpError(w, http.StatusBadRequest, "factor parameter is required")
		return
	}
	dataPath := s.dataPath(r)

	raw, err := dataset.LoadCSV(dataPath)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	mid, err := dataset.BuildMidprice(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine := factor.NewEngine(s.logger, s.factors)
	features, outcomes := engine.Compute(mid, []string{name})
	if !features.Has(name) {
		msg := fmt.Sprintf("factor %q produced no output", name)
		for _, o := range outcomes {
			if o.Err != nil {
				msg = o.Err.Error()
			}
		}
		httpError(w, http.StatusBadRequest, msg)
		return
	}

	vals := features.Col(name)
	y := make([]*float64, len(vals))
	for i := range vals {
		if !math.IsNaN(vals[i]) {
			v := vals[i]
			y[i] = &v
		}
	}

	x := make([]string, mid.Len())
	ts := mid.Col("ts_ns")
	for i := range x {
		if ts != nil {
			x[i] = strconv.FormatFloat(ts[i], 'f', -1, 64)
		} else {
			x[i] = strconv.Itoa(i)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"factor": name, "x": x, "y": y})
}

// handleTrain relays a training request to the train CLI under a freshly
// named artifact directory and records the run in the index.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("train")
	if !s.runLimiter.Allow() {
		httpError(w, http.StatusTooManyRequests, "too many pipeline runs, slow down")
		return
	}

	q := r.URL.Query()
	req := TrainRequest{
		DataPath:  s.dataPath(r),
		Model:     orDefault(q.Get("model"), "logit"),
		Horizon:   intParam(q.Get("horizon"), 5),
		Eps:       floatParam(q.Get("eps"), 0),
		DropEqual: boolParam(q.Get("drop_equal")),
		Scale:     boolParam(q.Get("scale")),
		TestSize:  floatParam(q.Get("test_size"), 1.0/6.0),
	}
	if f := strings.TrimSpace(q.Get("factor")); f != "" {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Factors = append(req.Factors, name)
			}
		}
	}
	req.OutDir = s.newRunDir(req)

	out, err := s.runner.Train(r.Context(), req)
	if err != nil {
		s.hub.Broadcast(Event{Type: "run:failed", Payload: map[string]string{"error": err.Error()}})
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var meta artifact.Meta
	if err := json.Unmarshal(out, &meta); err != nil {
		httpError(w, http.StatusInternalServerError, fmt.Sprintf("train output is not meta JSON: %v", err))
		return
	}

	runID := uuid.New().String()
	if s.index != nil {
		err := s.index.Record(r.Context(), artifact.Run{
			ID:        runID,
			Dir:       req.OutDir,
			Model:     meta.ModelName,
			Task:      meta.Task,
			CreatedAt: time.Now(),
			Metrics:   meta.Metrics,
		})
		if err != nil {
			s.logger.Warn("run index record failed", zap.Error(err))
		}
	}

	s.hub.Broadcast(Event{Type: "run:complete", Payload: map[string]interface{}{
		"run_id": runID,
		"outdir": req.OutDir,
		"model":  meta.ModelName,
	}})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"outdir": req.OutDir,
		"meta":   meta,
	})
}

// handleBacktest relays a backtest request to the backtest CLI and passes
// its payload JSON through untouched.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("backtest")
	if !s.runLimiter.Allow() {
		httpError(w, http.StatusTooManyRequests, "too many pipeline runs, slow down")
		return
	}

	q := r.URL.Query()
	artdir := q.Get("artdir")
	if artdir == "" {
		httpError(w, http.StatusBadRequest, "artdir parameter is required")
		return
	}
	horizon := intParam(q.Get("horizon"), 5)

	out, err := s.runner.Backtest(r.Context(), artdir, s.dataPath(r), horizon)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

// handleRuns lists recent training runs from the index.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("runs")
	if s.index == nil {
		writeJSON(w, http.StatusOK, []artifact.Run{})
		return
	}
	runs, err := s.index.List(r.Context(), intParam(r.URL.Query().Get("limit"), 50))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []artifact.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleDashboardPnL re-derives fee-adjusted PnL from a trade log.
func (s *Server) handleDashboardPnL(w http.ResponseWriter, r *http.Request) {
	s.metrics.Request("dashboard_pnl")
	path := r.URL.Query().Get("path")
	if path == "" {
		path = s.cfg.Data.TradesFile
	}
	review, err := s.reviewer.FromCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httpError(w, http.StatusNotFound, err.Error())
			return
		}
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// newRunDir builds a unique artifact directory name like
// artifacts/20250101-120000_logit_momentum_5-momentum_20_h5_e0.
func (s *Server) newRunDir(req TrainRequest) string {
	tag := strings.Join(req.Factors, "-")
	if tag == "" {
		tag = "all"
	}
	name := fmt.Sprintf("%s_%s_%s_h%d_e%s",
		time.Now().Format("20060102-150405"),
		req.Model, tag, req.Horizon,
		strconv.FormatFloat(req.Eps, 'g', -1, 64),
	)
	return filepath.Join(s.cfg.Artifacts.Dir, name)
}

func (s *Server) dataPath(r *http.Request) string {
	if p := r.URL.Query().Get("data_path"); p != "" {
		return p
	}
	return s.cfg.Data.DefaultPath
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatParam(v string, def float64) float64 {
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolParam(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

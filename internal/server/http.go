// Package server exposes a generated snapshot to the dashboard over a
// local, read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
	"github.com/ThomasVuNguyen/pico-train/internal/query"
	"github.com/ThomasVuNguyen/pico-train/internal/snapshot"
)

// DashboardServer serves chart series and summaries over an immutable
// snapshot. The snapshot never changes after construction, so handlers
// take no locks.
type DashboardServer struct {
	snap   *model.Snapshot
	webDir string // static dashboard files, optional
	srv    *http.Server
}

// New creates a DashboardServer for the given snapshot.
func New(snap *model.Snapshot, webDir string) *DashboardServer {
	return &DashboardServer{snap: snap, webDir: webDir}
}

// Start runs the HTTP server until Shutdown.
func (s *DashboardServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler builds the route table.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/data", s.handleData)

	if s.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}
	return mux
}

// Shutdown gracefully shuts down the server.
func (s *DashboardServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// handleSummary returns the snapshot summary block.
func (s *DashboardServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snap.Summary); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

// handleRuns returns the per-run display summaries.
// GET /api/runs?run=all|<index>|<name>
func (s *DashboardServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sel, err := query.ParseSelection(r.URL.Query().Get("run"), s.snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(query.Stats(s.snap, sel)); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

// handleSeries returns label+points pairs for one metric family.
// GET /api/series?metric=loss|learning_rate|inf_nan|overlay|<eval metric>&run=all|<index>|<name>
//
// An unknown metric keyword is treated as an evaluation metric name, so
// the dashboard can request metric=paloma without a separate parameter.
func (s *DashboardServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	sel, err := query.ParseSelection(q.Get("run"), s.snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	metric := q.Get("metric")
	if metric == "" {
		http.Error(w, "metric parameter required", http.StatusBadRequest)
		return
	}

	var series []query.Series
	switch metric {
	case "loss":
		series = query.Loss(s.snap, sel)
	case "learning_rate":
		series = query.LearningRate(s.snap, sel)
	case "inf_nan":
		series = query.InfNaN(s.snap, sel)
	case "overlay":
		series = query.Overlay(s.snap, sel)
	default:
		series = query.Evaluation(s.snap, sel, metric)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := query.EncodeSeries(w, series); err != nil {
		log.Printf("Series encode error: %v", err)
	}
}

// handleData returns the full snapshot document.
func (s *DashboardServer) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := snapshot.Encode(w, s.snap); err != nil {
		log.Printf("Snapshot encode error: %v", err)
	}
}

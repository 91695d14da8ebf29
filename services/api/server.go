// Package api exposes the catalog, scans, monitoring and order sync
// over REST for the dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vitasana-backend/lib/timezone"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/orders"
	"vitasana-backend/services/scanner"
	"vitasana-backend/services/tracker"
)

type Options struct {
	Store   *catalog.Store
	Scanner *scanner.Scanner
	Tracker *tracker.Tracker
	Orders  *orders.Service
}

type Server struct {
	store   *catalog.Store
	scanner *scanner.Scanner
	tracker *tracker.Tracker
	orders  *orders.Service

	mu              sync.Mutex
	scanCancel      context.CancelFunc
	scanProgress    *scanner.Progress
	monitorCancel   context.CancelFunc
	monitorProgress *tracker.Progress
}

func NewServer(opts Options) *Server {
	return &Server{
		store:   opts.Store,
		scanner: opts.Scanner,
		tracker: opts.Tracker,
		orders:  opts.Orders,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/products", s.handleListProducts)
		r.Get("/products/{sku}/history", s.handleProductHistory)
		r.Get("/statuses", s.handleStatuses)

		r.Post("/scan/run", s.handleScanRun)
		r.Get("/scan/status", s.handleScanStatus)
		r.Post("/scan/stop", s.handleScanStop)

		r.Post("/monitoring/run", s.handleMonitoringRun)
		r.Get("/monitoring/status", s.handleMonitoringStatus)
		r.Post("/monitoring/stop", s.handleMonitoringStop)

		r.Post("/orders/sync", s.handleOrdersSync)
		r.Get("/orders", s.handleListOrders)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountProducts(r.Context())
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"products": count,
		"time":     timezone.Now(),
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	var keywords []string
	if q := r.URL.Query().Get("q"); q != "" {
		for _, keyword := range strings.Split(q, ",") {
			keyword = strings.TrimSpace(keyword)
			if keyword != "" {
				keywords = append(keywords, keyword)
			}
		}
	}

	products, err := s.store.GetProducts(r.Context(), limit, offset, keywords)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list products", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(products),
		"products": products,
	})
}

func (s *Server) handleProductHistory(w http.ResponseWriter, r *http.Request) {
	sku, err := strconv.ParseInt(chi.URLParam(r, "sku"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sku", http.StatusBadRequest)
		return
	}

	after := queryTime(r, "after", time.Time{})
	before := queryTime(r, "before", timezone.Now())
	limit := queryInt(r, "limit", 500)

	history, err := s.store.GetProductHistory(r.Context(), sku, after, before, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load history", "sku", sku, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sku":     sku,
		"count":   len(history),
		"history": history,
	})
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.GetLatestStatuses(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load statuses", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(statuses),
		"statuses": statuses,
	})
}

func (s *Server) handleScanRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Optimized bool `json:"optimized"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanCancel != nil && s.scanProgress.Snapshot().Phase == scanner.PhaseRunning {
		http.Error(w, "a scan is already running", http.StatusConflict)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	progress := scanner.NewProgress()
	s.scanCancel = cancel
	s.scanProgress = progress

	go func() {
		defer cancel()
		err := s.scanner.Run(ctx, scanner.RunOptions{Optimized: body.Optimized}, progress)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("background scan failed", "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"started":   true,
		"optimized": body.Optimized,
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	progress := s.scanProgress
	s.mu.Unlock()

	if progress == nil {
		writeJSON(w, http.StatusOK, map[string]any{"phase": scanner.PhaseIdle})
		return
	}
	writeJSON(w, http.StatusOK, progress.Snapshot())
}

func (s *Server) handleScanStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cancel := s.scanCancel
	s.mu.Unlock()

	if cancel == nil {
		http.Error(w, "no scan is running", http.StatusConflict)
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]any{"stopping": true})
}

func (s *Server) handleMonitoringRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitorCancel != nil && s.monitorProgress.Snapshot().Phase == tracker.PhaseRunning {
		http.Error(w, "a monitoring run is already running", http.StatusConflict)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	progress := tracker.NewProgress()
	s.monitorCancel = cancel
	s.monitorProgress = progress

	go func() {
		defer cancel()
		err := s.tracker.Run(ctx, progress)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("background monitoring run failed", "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func (s *Server) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	progress := s.monitorProgress
	s.mu.Unlock()

	if progress == nil {
		writeJSON(w, http.StatusOK, map[string]any{"phase": tracker.PhaseIdle})
		return
	}
	writeJSON(w, http.StatusOK, progress.Snapshot())
}

func (s *Server) handleMonitoringStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cancel := s.monitorCancel
	s.mu.Unlock()

	if cancel == nil {
		http.Error(w, "no monitoring run is running", http.StatusConflict)
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]any{"stopping": true})
}

func (s *Server) handleOrdersSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.orders.SyncOrders(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "order sync failed", "err", err)
		http.Error(w, "order sync failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 100)

	rows, err := s.store.GetOrders(r.Context(), status, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list orders", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(rows),
		"orders": rows,
	})
}

func queryInt(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func queryTime(r *http.Request, name string, fallback time.Time) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// Package server exposes the dashboard over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
)

// Dashboard is the set of queries and mutations the API serves.
type Dashboard interface {
	ListHabits(ctx context.Context, includeInactive bool) ([]dashboard.HabitView, error)
	Summary(ctx context.Context) (analytics.Summary, error)
	Chart(ctx context.Context, window int, anchor time.Time) (analytics.ChartData, error)
	KPIs(ctx context.Context, anchor time.Time) (analytics.KPIs, error)
	DaysSince(ctx context.Context, anchor time.Time) ([]analytics.Since, error)
	UpdateHabit(ctx context.Context, id string, p habit.Patch) (habit.Definition, error)
	DeleteHabit(ctx context.Context, id string) (habit.Definition, error)
	RestoreHabit(ctx context.Context, id string) (habit.Definition, error)
	Refresh(ctx context.Context) (dashboard.RefreshResult, error)
}

// Options configures the HTTP handler chain.
type Options struct {
	CORSOrigins []string
}

type api struct {
	dash Dashboard
	log  *zap.Logger
}

// NewRouter registers the API routes.
func NewRouter(d Dashboard, log *zap.Logger) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	s := &api{dash: d, log: log}
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	h := r.PathPrefix("/api/habits").Subrouter()
	h.HandleFunc("", s.listHabits).Methods(http.MethodGet)
	h.HandleFunc("/refresh", s.refresh).Methods(http.MethodGet, http.MethodPost)
	h.HandleFunc("/{id}", s.updateHabit).Methods(http.MethodPut, http.MethodPatch)
	h.HandleFunc("/{id}", s.deleteHabit).Methods(http.MethodDelete)
	h.HandleFunc("/{id}/restore", s.restoreHabit).Methods(http.MethodPost)

	a := r.PathPrefix("/api/analytics").Subrouter()
	a.HandleFunc("", s.summary).Methods(http.MethodGet)
	a.HandleFunc("/productivity-chart", s.chart(7)).Methods(http.MethodGet)
	a.HandleFunc("/productivity-chart-30days", s.chart(30)).Methods(http.MethodGet)
	a.HandleFunc("/productivity-metrics", s.kpis).Methods(http.MethodGet)
	a.HandleFunc("/selfcare-summary", s.daysSince).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with CORS, panic recovery and access logging.
func Handler(d Dashboard, opt Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	var h http.Handler = NewRouter(d, log)
	h = handlers.CORS(
		handlers.AllowedOrigins(opt.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(zap.NewStdLog(log)), handlers.PrintRecoveryStack(true))(h)
	access := zap.NewStdLog(log.Named("http")).Writer()
	return handlers.CombinedLoggingHandler(access, h)
}

// Run serves h on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func (s *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

// degraded logs a failed query; the caller still answers with the default payload so the
// dashboard keeps rendering.
func (s *api) degraded(r *http.Request, err error) {
	s.log.Error("request failed, serving defaults", zap.String("path", r.URL.Path), zap.Error(err))
}

func (s *api) listHabits(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	views, err := s.dash.ListHabits(r.Context(), all)
	if err != nil {
		s.degraded(r, err)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *api) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.dash.Refresh(r.Context())
	if err != nil {
		s.degraded(r, err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *api) updateHabit(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	defer r.Body.Close()
	var p habit.Patch
	if err := json.Unmarshal(b, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	def, err := s.dash.UpdateHabit(r.Context(), mux.Vars(r)["id"], p)
	s.mutation(w, r, def, err)
}

func (s *api) deleteHabit(w http.ResponseWriter, r *http.Request) {
	def, err := s.dash.DeleteHabit(r.Context(), mux.Vars(r)["id"])
	s.mutation(w, r, def, err)
}

func (s *api) restoreHabit(w http.ResponseWriter, r *http.Request) {
	def, err := s.dash.RestoreHabit(r.Context(), mux.Vars(r)["id"])
	s.mutation(w, r, def, err)
}

func (s *api) mutation(w http.ResponseWriter, r *http.Request, def habit.Definition, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, def)
	case errors.Is(err, habit.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("habit update failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *api) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dash.Summary(r.Context())
	if err != nil {
		s.degraded(r, err)
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *api) chart(window int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		anchor, ok := anchorParam(w, r)
		if !ok {
			return
		}
		data, err := s.dash.Chart(r.Context(), window, anchor)
		if err != nil {
			s.degraded(r, err)
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *api) kpis(w http.ResponseWriter, r *http.Request) {
	anchor, ok := anchorParam(w, r)
	if !ok {
		return
	}
	k, err := s.dash.KPIs(r.Context(), anchor)
	if err != nil {
		s.degraded(r, err)
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *api) daysSince(w http.ResponseWriter, r *http.Request) {
	anchor, ok := anchorParam(w, r)
	if !ok {
		return
	}
	since, err := s.dash.DaysSince(r.Context(), anchor)
	if err != nil {
		s.degraded(r, err)
	}
	writeJSON(w, http.StatusOK, since)
}

// anchorParam reads ?anchor=YYYY-MM-DD. A missing value yields the zero time.
func anchorParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("anchor")
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "anchor must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

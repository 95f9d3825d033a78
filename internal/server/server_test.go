package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/overrides"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
)

const week = `Data,WEEKDAY,Coding,Gym,Journal
2024-03-01,Fri,60,1,x
2024-03-02,Sat,,1,
2024-03-03,Sun,30,0,x
`

func newHandler(t *testing.T) (http.Handler, *overrides.Memory) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week.csv"), []byte(week), 0o644))
	store := overrides.NewMemory(nil)
	svc := dashboard.New(sheet.DirSource{Dir: dir, Options: sheet.DefaultOptions()}, store, dashboard.Options{}, zaptest.NewLogger(t))
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC) })
	h := Handler(svc, Options{CORSOrigins: []string{"http://localhost:3000"}}, zaptest.NewLogger(t))
	return h, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newHandler(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])
}

func TestListHabits(t *testing.T) {
	h, store := newHandler(t)
	rec := do(t, h, http.MethodGet, "/api/habits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]map[string]any](t, rec)
	require.Len(t, got, 3)
	names := map[string]map[string]any{}
	for _, v := range got {
		names[v["name"].(string)] = v
	}
	require.Contains(t, names, "Coding")
	assert.Equal(t, "time", names["Coding"]["habit_type"])
	assert.Equal(t, "binary", names["Gym"]["habit_type"])
	assert.Equal(t, "description", names["Journal"]["habit_type"])
	assert.EqualValues(t, 2, names["Gym"]["best_streak"])
	assert.Equal(t, 1, store.Saves)
}

func TestHideAndRestore(t *testing.T) {
	h, _ := newHandler(t)
	id := habit.IdentityOf("Gym")

	rec := do(t, h, http.MethodDelete, "/api/habits/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode[map[string]any](t, rec)["active"])

	list := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/habits", ""))
	assert.Len(t, list, 2)
	all := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/habits?include_inactive=true", ""))
	assert.Len(t, all, 3)

	rec = do(t, h, http.MethodPost, "/api/habits/"+id+"/restore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["active"])
}

func TestUpdateHabit(t *testing.T) {
	h, _ := newHandler(t)
	id := habit.IdentityOf("Coding")

	rec := do(t, h, http.MethodPut, "/api/habits/"+id, `{"name":"Deep work","emoji":"💻","is_personal":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "Deep work", got["name"])
	assert.Equal(t, "💻", got["emoji"])
	assert.Equal(t, true, got["is_personal"])
	assert.Equal(t, "time", got["habit_type"])

	rec = do(t, h, http.MethodPut, "/api/habits/"+id, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/habits/unknown", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "habit not found")
}

func TestAnalyticsEndpoints(t *testing.T) {
	h, _ := newHandler(t)

	sum := decode[analytics.Summary](t, do(t, h, http.MethodGet, "/api/analytics", ""))
	assert.Equal(t, 3, sum.TotalHabits)
	assert.Equal(t, "2024-03-03", sum.Anchor)

	rec := do(t, h, http.MethodGet, "/api/analytics/productivity-chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	chart := decode[map[string]any](t, rec)
	days := chart["chart_data"].([]any)
	require.Len(t, days, 7)
	last := days[6].(map[string]any)
	assert.Equal(t, "2024-03-03", last["date"])
	assert.EqualValues(t, 30, last["total"])
	assert.Nil(t, days[0].(map[string]any)["total"])

	rec = do(t, h, http.MethodGet, "/api/analytics/productivity-chart-30days?anchor=2024-03-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	chart = decode[map[string]any](t, rec)
	assert.Len(t, chart["chart_data"].([]any), 30)
	assert.Equal(t, "2024-03-02", chart["anchor"])

	k := decode[analytics.KPIs](t, do(t, h, http.MethodGet, "/api/analytics/productivity-metrics", ""))
	assert.Equal(t, 30.0, k.AvgDaily)
	assert.Equal(t, 60.0, k.MaxDaily)

	since := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/analytics/selfcare-summary", ""))
	assert.Len(t, since, 2)
}

func TestBadAnchor(t *testing.T) {
	h, _ := newHandler(t)
	rec := do(t, h, http.MethodGet, "/api/analytics/productivity-metrics?anchor=03/03/2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	h, _ := newHandler(t)
	res := decode[dashboard.RefreshResult](t, do(t, h, http.MethodGet, "/api/habits/refresh", ""))
	assert.Equal(t, []string{"week.csv"}, res.Sources)
	assert.Equal(t, 3, res.Habits)
	assert.Equal(t, 3, res.Days)
}

func TestCORS(t *testing.T) {
	h, _ := newHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/habits", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/habits", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// failing answers every query with an error so the degraded payloads are exercised.
type failing struct{}

var errDown = errors.New("source down")

func (failing) ListHabits(context.Context, bool) ([]dashboard.HabitView, error) {
	return []dashboard.HabitView{}, errDown
}
func (failing) Summary(context.Context) (analytics.Summary, error) { return analytics.Summary{}, errDown }
func (failing) Chart(context.Context, int, time.Time) (analytics.ChartData, error) {
	return analytics.ChartData{Days: []analytics.ChartDay{}, Categories: []string{}, Colors: map[string]string{}}, errDown
}
func (failing) KPIs(context.Context, time.Time) (analytics.KPIs, error) { return analytics.KPIs{}, errDown }
func (failing) DaysSince(context.Context, time.Time) ([]analytics.Since, error) {
	return []analytics.Since{}, errDown
}
func (failing) UpdateHabit(context.Context, string, habit.Patch) (habit.Definition, error) {
	return habit.Definition{}, &overrides.PersistenceError{Op: "save", Err: errDown}
}
func (f failing) DeleteHabit(ctx context.Context, id string) (habit.Definition, error) {
	return f.UpdateHabit(ctx, id, habit.Patch{})
}
func (f failing) RestoreHabit(ctx context.Context, id string) (habit.Definition, error) {
	return f.UpdateHabit(ctx, id, habit.Patch{})
}
func (failing) Refresh(context.Context) (dashboard.RefreshResult, error) {
	return dashboard.RefreshResult{}, errDown
}

func TestDegradedResponses(t *testing.T) {
	h := NewRouter(failing{}, zaptest.NewLogger(t))

	for _, path := range []string{
		"/api/habits",
		"/api/analytics",
		"/api/analytics/productivity-chart",
		"/api/analytics/productivity-metrics",
		"/api/analytics/selfcare-summary",
	} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.JSONEq(t, "[]", do(t, h, http.MethodGet, "/api/habits", "").Body.String())

	rec := do(t, h, http.MethodDelete, "/api/habits/abc", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), zaptest.NewLogger(t)) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantpal/plantpal/internal/events"
	"github.com/plantpal/plantpal/internal/health"
	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/progression"
	"github.com/plantpal/plantpal/internal/services"
	"github.com/plantpal/plantpal/internal/store"
	"github.com/plantpal/plantpal/internal/store/memory"
)

type testAPI struct {
	router *mux.Router
	bus    *events.Bus
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	clk := progression.FixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	m := metrics.New(prometheus.NewRegistry())

	st := memory.New()
	progress := services.NewProgressService(st, progression.NewEngine(progression.WithClock(clk)),
		services.WithBus(bus),
		services.WithMetrics(m),
		services.WithRetryPolicy(services.RetryPolicy{MaxAttempts: 1}),
	)
	mon := health.NewMonitor(zerolog.Nop(), time.Second).Add("store", store.HealthCheck(st))
	mon.Check(context.Background())
	router := NewRouter(Deps{
		Progress:    progress,
		Analytics:   services.NewAnalyticsService(progress),
		Chat:        services.NewChatService(progress, services.CannedResponder{}, zerolog.Nop()),
		Health:      NewHealthHandler(mon),
		Bus:         bus,
		EventBuffer: 16,
		Metrics:     m,
		Log:         zerolog.Nop(),
	})
	return &testAPI{router: router, bus: bus}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "healthy", body["status"])
	comps, ok := body["components"].(map[string]interface{})
	require.True(t, ok)
	storeStatus, ok := comps["store"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, storeStatus["healthy"])
	assert.NotEmpty(t, storeStatus["checkedAt"])

	rr = httptest.NewRecorder()
	NewHealthHandler(nil).CheckHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "unhealthy", decode(t, rr)["status"])
}

func TestInvalidUserID(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodGet, "/api/users/bad.user/stats", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsDefaults(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodGet, "/api/users/u1/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["level"])
	assert.EqualValues(t, 100, body["requiredExperience"])
	assert.Equal(t, "seedling", body["plantType"])
	assert.Equal(t, false, body["checkedInToday"])
}

func TestCheckInTwice(t *testing.T) {
	a := newTestAPI(t)
	first := decode(t, a.do(t, http.MethodPost, "/api/users/u1/checkins", nil))
	assert.Equal(t, true, first["applied"])
	assert.EqualValues(t, 20, first["experienceAwarded"])

	second := decode(t, a.do(t, http.MethodPost, "/api/users/u1/checkins", nil))
	assert.Equal(t, false, second["applied"])
	stats := second["stats"].(map[string]interface{})
	assert.EqualValues(t, 20, stats["experience"])
}

func TestCompleteConversation(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodPost, "/api/users/u1/conversations/completed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	unlocked := body["unlocked"].([]interface{})
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_chat", unlocked[0].(map[string]interface{})["achievementId"])
}

func TestMoods(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodPost, "/api/users/u1/moods", map[string]interface{}{"mood": "grumpy", "intensity": 5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = a.do(t, http.MethodPost, "/api/users/u1/moods", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, http.MethodPost, "/api/users/u1/moods", map[string]interface{}{"mood": "happy", "intensity": 7, "triggers": []string{"work"}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	entry := body["entry"].(map[string]interface{})
	assert.Equal(t, "happy", entry["mood"])
	assert.NotEmpty(t, entry["id"])

	list := decode(t, a.do(t, http.MethodGet, "/api/users/u1/moods?limit=10", nil))
	assert.EqualValues(t, 1, list["count"])

	rr = a.do(t, http.MethodGet, "/api/users/u1/moods?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConversation(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodPost, "/api/users/u1/conversations", map[string]string{"message": "I feel great today"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "positive", body["analysis"].(map[string]interface{})["sentiment"])
	assert.NotNil(t, body["reply"])
	assert.EqualValues(t, 10, body["progress"].(map[string]interface{})["experienceAwarded"])

	rr = a.do(t, http.MethodPost, "/api/users/u1/conversations", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	history := decode(t, a.do(t, http.MethodGet, "/api/users/u1/conversations", nil))
	assert.EqualValues(t, 2, history["count"])
}

func TestConversationCrisis(t *testing.T) {
	a := newTestAPI(t)
	body := decode(t, a.do(t, http.MethodPost, "/api/users/u1/conversations", map[string]string{"message": "everything feels hopeless"}))
	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, true, analysis["crisisRisk"])
	assert.NotEmpty(t, analysis["supportSuggestions"])
	_, hasReply := body["reply"]
	assert.False(t, hasReply)
	_, hasProgress := body["progress"]
	assert.False(t, hasProgress)
}

func TestAchievementsAndAnalytics(t *testing.T) {
	a := newTestAPI(t)
	empty := decode(t, a.do(t, http.MethodGet, "/api/users/u1/analytics", nil))
	assert.Nil(t, empty["analytics"])

	a.do(t, http.MethodPost, "/api/users/u1/conversations/completed", nil)
	a.do(t, http.MethodPost, "/api/users/u1/moods", map[string]interface{}{"mood": "content", "intensity": 6})

	ach := decode(t, a.do(t, http.MethodGet, "/api/users/u1/achievements", nil))
	assert.EqualValues(t, 21, ach["total"])
	assert.EqualValues(t, 2, ach["unlocked"])

	an := decode(t, a.do(t, http.MethodGet, "/api/users/u1/analytics", nil))
	summary := an["analytics"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["totalEntries"])
	assert.Equal(t, "content", summary["mostCommonMood"])
}

func TestExportImportDelete(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/users/u1/conversations/completed", nil)
	a.do(t, http.MethodPost, "/api/users/u1/moods", map[string]interface{}{"mood": "happy", "intensity": 8})

	rr := a.do(t, http.MethodGet, "/api/users/u1/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "plantpal-export.json")
	exported := rr.Body.String()

	rr = a.do(t, http.MethodPost, "/api/users/u2/import", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, decode(t, rr)["totalConversations"])

	rr = a.do(t, http.MethodDelete, "/api/users/u1/data", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	stats := decode(t, a.do(t, http.MethodGet, "/api/users/u1/stats", nil))
	assert.EqualValues(t, 0, stats["totalConversations"])
	moved := decode(t, a.do(t, http.MethodGet, "/api/users/u2/moods", nil))
	assert.EqualValues(t, 1, moved["count"])

	rr = a.do(t, http.MethodPost, "/api/users/u2/import", "[]")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImport_RejectsOutOfRangeLevel(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/users/u1/conversations/completed", nil)

	body := `{"plantStats":{"level":9223372036854775807,"experience":0},"moodEntries":[],"achievements":[],"messages":[]}`
	rr := a.do(t, http.MethodPost, "/api/users/u1/import", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	stats := decode(t, a.do(t, http.MethodGet, "/api/users/u1/stats", nil))
	assert.EqualValues(t, 1, stats["totalConversations"])
	assert.EqualValues(t, 1, stats["level"])
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodGet, "/api/users/u1/stats", nil)

	rr := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := rr.Body.String()
	assert.Contains(t, out, "plantpal_http_request_duration_seconds")
	assert.Contains(t, out, `route="/api/users/{userId}/stats"`)
}

func TestEventStream(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/users/u1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return a.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Events for other users are filtered out.
	a.do(t, http.MethodPost, "/api/users/other/checkins", nil)
	a.do(t, http.MethodPost, "/api/users/u1/checkins", nil)

	sc := bufio.NewScanner(resp.Body)
	var kind, data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			kind = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, string(events.KindStatsUpdated), kind)

	var evt events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, "u1", evt.UserID)
}

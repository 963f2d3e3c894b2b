package internal

import (
	"anonbot/internal/controllers"
	"anonbot/internal/services"
	"anonbot/internal/structures"
	"anonbot/internal/testutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeTestScheduler struct{}

func (m *routeTestScheduler) Init()          {}
func (m *routeTestScheduler) Stop()          {}
func (m *routeTestScheduler) Restore() error { return nil }
func (m *routeTestScheduler) Persist() error { return nil }
func (m *routeTestScheduler) RequestSave()   {}
func (m *routeTestScheduler) State() string  { return "idle" }

func newRouteTestController(t *testing.T) *controllers.ApiController {
	t.Helper()
	conf := &structures.Config{
		Bot:       structures.BotConfig{Mode: structures.ModePrivate, OwnerID: 1},
		RateLimit: structures.RateLimitConfig{Messages: 5, WindowSeconds: 60},
	}
	clock := testutil.NewMockClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, err := services.NewFeedbackService(conf, clock)
	require.NoError(t, err)
	router := services.NewReplyRouter(testutil.NewMockCache(), svc)
	return controllers.NewApiController(&testutil.MockLogger{}, svc, router, &routeTestScheduler{}, testutil.NewMockMetrics(), clock)
}

func newRouteTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	for _, r := range InitRoutes(newRouteTestController(t)).GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}
	return mux
}

func TestInitRoutes_RegistersControlRoutes(t *testing.T) {
	routes := InitRoutes(newRouteTestController(t)).GetRoutes()

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	assert.ElementsMatch(t, []string{
		"/message", "/forward", "/reply-route", "/targets",
		"/block", "/unblock", "/mode", "/stats", "/user", "/recipients", "/history", "/save",
	}, urls)
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	mux := newRouteTestMux(t)

	cases := []struct {
		method, url string
	}{
		{http.MethodGet, "/message"},
		{http.MethodGet, "/block"},
		{http.MethodPost, "/stats"},
		{http.MethodDelete, "/mode"},
		{http.MethodGet, "/save"},
		{http.MethodPost, "/history"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.url, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, "%s %s", c.method, c.url)
	}
}

func TestInitRoutes_ModeAcceptsGetAndPost(t *testing.T) {
	mux := newRouteTestMux(t)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mode", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mode", strings.NewReader(`{"mode":"private"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestInitRoutes_MessageFlow(t *testing.T) {
	mux := newRouteTestMux(t)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"user_id":7,"display_name":"x"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user?id=7", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message_count":1`)
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/session"
	"github.com/ethpandaops/specviewer/pkg/store"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv      *server
	http     *httptest.Server
	store    store.Store
	sessions session.Manager
	clock    *clockwork.FakeClock
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg, err := config.Parse([]byte("{}"), t.TempDir())
	require.NoError(t, err)

	if mutate != nil {
		mutate(cfg)
	}

	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)

	st := store.NewSQLiteStore(log, filepath.Join(t.TempDir(), "specviewer.db"))
	require.NoError(t, st.Start(ctx))
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, SyncDemosFromConfig(ctx, log, st, cfg, m))

	sessions := session.NewManager(log, cfg, m, clock)

	s, err := NewServer(log, cfg, st, sessions, m, clock, WithGatherer(reg))
	require.NoError(t, err)

	srv, ok := s.(*server)
	require.True(t, ok)

	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		cancel()
		_ = sessions.Stop()
		_ = srv.Stop()
		_ = st.Stop()
	})

	return &testEnv{srv: srv, http: ts, store: st, sessions: sessions, clock: clock}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(e.http.URL + path)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func (e *testEnv) do(t *testing.T, method, path, body string, withAuth bool) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")

	if withAuth {
		req.SetBasicAuth("admin", "s3cret")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func withAdmin(t *testing.T) func(*config.Config) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	return func(cfg *config.Config) {
		cfg.Auth.Admin = config.AdminConfig{Username: "admin", PasswordHash: string(hash)}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, 0, health.Sessions)
	assert.False(t, health.Config.Admin)
	assert.Equal(t, "openapi.yaml", health.Config.DefaultSpec)
}

func TestState(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		query    string
		specURL  string
		selected string
		cors     bool
	}{
		{name: "default", query: "", specURL: "openapi.yaml", selected: "", cors: true},
		{name: "new version", query: "?url=openapi-3-1.yaml", specURL: "openapi-3-1.yaml", selected: "openapi-3-1.yaml", cors: false},
		{
			name:     "proxied absolute",
			query:    "?url=" + url.QueryEscape("https://x.io/s.yaml"),
			specURL:  "https://cors.redoc.ly/https://x.io/s.yaml",
			selected: "https://x.io/s.yaml",
			cors:     true,
		},
		{name: "relative resolved against page", query: "?url=specs%2Fa.yaml", specURL: "https://cors.redoc.ly/" + env.http.URL + "/specs/a.yaml", selected: "specs/a.yaml", cors: true},
		{name: "nocors", query: "?url=specs%2Fa.yaml&nocors", specURL: "specs/a.yaml", selected: "specs/a.yaml", cors: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, "/api/v1/state"+tt.query)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var view viewer.View
			require.NoError(t, json.Unmarshal(body, &view))

			assert.Equal(t, tt.specURL, view.SpecURL)
			assert.Equal(t, tt.selected, view.SelectedSource)
			assert.Equal(t, tt.cors, view.CORSEnabled)
			assert.Equal(t, "#000000", view.Theme.PrimaryColor())
		})
	}
}

func TestPage(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/?url=openapi-3-1.yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html := string(body)
	assert.Contains(t, html, `<option value="openapi-3-1.yaml" selected>Petstore OpenAPI 3.1</option>`)
	assert.Contains(t, html, "GraphHopper")
	assert.NotContains(t, html, `type="checkbox" checked`)
}

func TestListDemos(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/v1/demos")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var demos []store.Demo
	require.NoError(t, json.Unmarshal(body, &demos))

	require.Len(t, demos, len(config.DefaultDemos()))
	assert.Equal(t, "openapi-3-1.yaml", demos[0].Value)
	assert.True(t, demos[0].InConfig)
}

func TestDemoAdmin(t *testing.T) {
	env := newTestEnv(t, withAdmin(t))
	path := "/api/v1/demos/" + url.PathEscape("https://x.io/s.yaml")

	resp := env.do(t, http.MethodPut, path, `{"label":"X"}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPut, path, `{"label":""}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, path, `{"label":"X"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	demo, err := env.store.GetDemo(context.Background(), "https://x.io/s.yaml")
	require.NoError(t, err)
	assert.Equal(t, "X", demo.Label)
	assert.Equal(t, len(config.DefaultDemos()), demo.Position)
	assert.False(t, demo.InConfig)

	resp = env.do(t, http.MethodPut, path, `{"label":"Y","position":0}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	demo, err = env.store.GetDemo(context.Background(), "https://x.io/s.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Y", demo.Label)
	assert.Equal(t, 0, demo.Position)

	resp = env.do(t, http.MethodDelete, path, "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, path, "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDemoAdminDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPut, "/api/v1/demos/a.yaml", `{"label":"A"}`, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/v1/openapi.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))

	info, ok := doc["info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Spec Viewer API", info["title"])

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/state")
	assert.Contains(t, paths, "/demos/{value}")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.get(t, "/health")

	resp, body := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `specviewer_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), "specviewer_demos_total 6")
}

func dialWS(t *testing.T, env *testEnv, search string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + wsPath + search

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestWebSocketSession(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, "?foo=bar")

	initial := readMessage(t, conn)
	require.Equal(t, MessageTypeState, initial.Type)
	require.NotNil(t, initial.View)
	assert.Equal(t, viewer.CauseSnapshot, initial.View.Cause)
	assert.Equal(t, "openapi.yaml", initial.View.SpecSource)
	assert.True(t, initial.View.CORSEnabled)
	assert.Equal(t, 1, env.sessions.Count())

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSelectSpec, Value: "openapi-3-1.yaml"}))

	push := readMessage(t, conn)
	assert.Equal(t, MessageTypePushState, push.Type)
	assert.Equal(t, "?foo=bar&url=openapi-3-1.yaml", push.Search)
	assert.Equal(t, 1, push.Index)

	state := readMessage(t, conn)
	require.Equal(t, MessageTypeState, state.Type)
	assert.Equal(t, viewer.CauseSelectSpec, state.View.Cause)
	assert.False(t, state.View.CORSEnabled)
	assert.Equal(t, "openapi-3-1.yaml", state.View.SpecURL)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeToggleCORS, Checked: true}))

	push = readMessage(t, conn)
	assert.Equal(t, "?foo=bar&url=openapi-3-1.yaml", push.Search)
	assert.Equal(t, 2, push.Index)

	state = readMessage(t, conn)
	assert.True(t, state.View.CORSEnabled)

	index := 0
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePopState, Index: &index, Search: "?foo=bar"}))

	state = readMessage(t, conn)
	assert.Equal(t, viewer.CauseRestore, state.View.Cause)
	assert.Equal(t, "openapi.yaml", state.View.SpecSource)
	assert.Equal(t, "?foo=bar", state.View.Search)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "bogus"}))

	errMsg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, errMsg.Type)
	assert.Equal(t, "unknown message type", errMsg.Error)
}

func TestWebSocketCloseEndsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, "")

	readMessage(t, conn)
	require.Equal(t, 1, env.sessions.Count())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return env.sessions.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketReceivesCatalogChanges(t *testing.T) {
	env := newTestEnv(t, withAdmin(t))
	conn := dialWS(t, env, "")

	readMessage(t, conn)

	require.Eventually(t, func() bool { return env.srv.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPut, "/api/v1/demos/new.yaml", `{"label":"New"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeDemos, msg.Type)
	require.NotEmpty(t, msg.Demos)
	assert.Equal(t, "new.yaml", msg.Demos[len(msg.Demos)-1].Value)
}

func TestWebSocketSessionLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Session.MaxSessions = 1
	})

	conn := dialWS(t, env, "")
	readMessage(t, conn)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + wsPath

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + wsPath
	header := http.Header{"Origin": []string{"https://evil.example.com"}}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.sessions.Count())
}

func pageQuery(page string) string {
	return "?page=" + url.QueryEscape(page)
}

func TestWebSocketPageParam(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env, pageQuery(env.http.URL+"/docs/viewer/?url=specs%2Fa.yaml#intro"))

	initial := readMessage(t, conn)
	require.Equal(t, MessageTypeState, initial.Type)
	assert.Equal(t, "specs/a.yaml", initial.View.SpecSource)
	assert.Equal(t, "?url=specs%2Fa.yaml", initial.View.Search)
	assert.Equal(t, "https://cors.redoc.ly/"+env.http.URL+"/docs/viewer/specs/a.yaml", initial.View.SpecURL)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeToggleCORS, Checked: false}))

	push := readMessage(t, conn)
	require.Equal(t, MessageTypePushState, push.Type)
	assert.Equal(t, "?url=specs%2Fa.yaml&nocors=", push.Search)
}

func TestStatePageParam(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, "/api/v1/state"+pageQuery(env.http.URL+"/docs/?url=specs%2Fa.yaml"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view viewer.View
	require.NoError(t, json.Unmarshal(body, &view))

	assert.Equal(t, "https://cors.redoc.ly/"+env.http.URL+"/docs/specs/a.yaml", view.SpecURL)
}

func TestTabOf(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		referer  string
		wantPage string
		wantSrch string
	}{
		{
			name:     "page parameter",
			target:   "/api/v1/ws" + pageQuery("https://docs.example.com/sub/?url=a.yaml&nocors"),
			wantPage: "https://docs.example.com/sub/?url=a.yaml&nocors",
			wantSrch: "?url=a.yaml&nocors",
		},
		{
			name:     "page without query",
			target:   "/api/v1/ws" + pageQuery("https://docs.example.com/sub/"),
			wantPage: "https://docs.example.com/sub/",
			wantSrch: "",
		},
		{
			name:     "referer",
			target:   "/api/v1/ws?url=a.yaml",
			referer:  "https://docs.example.com/sub/?url=a.yaml",
			wantPage: "https://docs.example.com/sub/?url=a.yaml",
			wantSrch: "?url=a.yaml",
		},
		{
			name:     "site root fallback",
			target:   "/api/v1/ws?url=a.yaml",
			wantPage: "http://example.com/",
			wantSrch: "?url=a.yaml",
		},
		{
			name:     "non-http page ignored",
			target:   "/api/v1/ws?page=javascript%3Aalert(1)",
			wantPage: "http://example.com/",
			wantSrch: "?page=javascript%3Aalert(1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			page, search := tabOf(req)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSrch, search)
		})
	}
}

func TestWebSocketPingKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, env.sessions.Start(ctx))
	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))

	reading := dialWS(t, env, "?url=a.yaml")
	readMessage(t, reading)

	idle := dialWS(t, env, "?url=b.yaml")
	readMessage(t, idle)

	require.Equal(t, 2, env.sessions.Count())

	env.clock.Advance(20 * time.Minute)

	require.NoError(t, reading.WriteJSON(ClientMessage{Type: MessageTypePing}))
	require.Equal(t, MessageTypePong, readMessage(t, reading).Type)

	env.clock.Advance(20 * time.Minute)

	require.Eventually(t, func() bool { return env.sessions.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, idle.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := idle.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "idle tab closed: %v", err)

	require.NoError(t, reading.WriteJSON(ClientMessage{Type: MessageTypeSelectSpec, Value: "c.yaml"}))

	push := readMessage(t, reading)
	assert.Equal(t, MessageTypePushState, push.Type)
	assert.Equal(t, "?url=c.yaml", push.Search)
}

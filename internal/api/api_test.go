package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rey-arena/internal/config"
	"rey-arena/internal/game"
	"rey-arena/internal/protocol"
)

// mockSession implements SessionInterface for testing
type mockSession struct {
	connected bool
}

func (m *mockSession) SessionID() string { return "sess-1" }
func (m *mockSession) IsConnected() bool { return m.connected }
func (m *mockSession) GetStats() map[string]uint64 {
	return map[string]uint64{"received": 7}
}

type staticStats map[string]uint64

func (s staticStats) GetStats() map[string]uint64 { return s }

func newTestScene(t *testing.T) *game.Scene {
	t.Helper()
	s := game.NewScene(game.DefaultOptions())
	t.Cleanup(s.Close)
	s.HandleState(&protocol.Snapshot{
		Players: map[string]protocol.PlayerState{
			"a": {Role: "rey", Nickname: "Ana", TimeAsRey: 4},
			"b": {Role: "mato", Nickname: "Ben", TimeAsRey: 9},
		},
	})
	s.SetLocalID("a")
	return s
}

func newTestServer(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
		t.Cleanup(cfg.RateLimiter.Stop)
	}
	cfg.DisableLogging = true
	ts := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

// TestHealth tests the probe endpoint
func TestHealth(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Scene: newTestScene(t)})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("Expected 200 OK, got %d %q", resp.StatusCode, body)
	}
}

// TestGetState tests the HUD and counters
func TestGetState(t *testing.T) {
	ts := newTestServer(t, RouterConfig{
		Scene:   newTestScene(t),
		Session: &mockSession{connected: true},
	})

	var state struct {
		HUD       game.HUD `json:"hud"`
		LocalID   string   `json:"localId"`
		Players   int      `json:"players"`
		Connected bool     `json:"connected"`
		Resources int      `json:"resources"`
	}
	resp := getJSON(t, ts.URL+"/api/state", &state)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if state.LocalID != "a" || state.Players != 2 {
		t.Errorf("Unexpected state %+v", state)
	}
	if state.HUD.CurrentRole != "rey" || state.HUD.TimeAsRey != 4 {
		t.Errorf("Unexpected HUD %+v", state.HUD)
	}
	if !state.Connected {
		t.Error("Expected session connected")
	}
	if state.Resources == 0 {
		t.Error("Expected live resources")
	}
}

// TestGetEntitiesAndLeaderboard tests listing endpoints
func TestGetEntitiesAndLeaderboard(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Scene: newTestScene(t)})

	var entities []game.EntityInfo
	getJSON(t, ts.URL+"/api/entities", &entities)
	if len(entities) != 2 || entities[0].ID != "a" || !entities[0].Local {
		t.Errorf("Unexpected entities %+v", entities)
	}

	var board []game.LeaderboardEntry
	getJSON(t, ts.URL+"/api/leaderboard?limit=1", &board)
	if len(board) != 1 || board[0].ID != "b" || board[0].Rank != 1 {
		t.Errorf("Unexpected leaderboard %+v", board)
	}

	resp := getJSON(t, ts.URL+"/api/leaderboard?limit=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

// TestGetEventsAndStats tests the journal and merged stats
func TestGetEventsAndStats(t *testing.T) {
	ts := newTestServer(t, RouterConfig{
		Scene:   newTestScene(t),
		Session: &mockSession{},
		Stats:   map[string]StatsSource{"input": staticStats{"sent": 3}},
	})

	var events []game.JournalEntry
	getJSON(t, ts.URL+"/api/events?n=1", &events)
	if len(events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(events))
	}

	var stats map[string]map[string]uint64
	getJSON(t, ts.URL+"/api/stats", &stats)
	if stats["input"]["sent"] != 3 {
		t.Errorf("Expected input stats, got %+v", stats["input"])
	}
	if stats["session"]["received"] != 7 {
		t.Errorf("Expected session stats, got %+v", stats["session"])
	}
	if stats["scene"]["states"] != 1 {
		t.Errorf("Expected 1 applied state, got %+v", stats["scene"])
	}
}

// TestSessionEndpointWithoutSession tests the optional dependency
func TestSessionEndpointWithoutSession(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Scene: newTestScene(t)})

	resp := getJSON(t, ts.URL+"/api/session", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

// TestMetricsEndpoint tests the Prometheus scrape
func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Scene: newTestScene(t)})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "arena_snapshot_apply_duration_seconds") {
		t.Error("Expected arena metrics in scrape output")
	}
}

// TestBasicAuth tests protected routes and the open health check
func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, RouterConfig{
		Scene:         newTestScene(t),
		BasicAuthUser: "ops",
		BasicAuthPass: "secret",
	})

	resp := getJSON(t, ts.URL+"/api/state", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/state", nil)
	req.SetBasicAuth("ops", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", resp.StatusCode)
	}

	resp = getJSON(t, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health should stay open, got %d", resp.StatusCode)
	}
}

// TestRateLimit tests rejection once the burst is spent
func TestRateLimit(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer rl.Stop()
	ts := newTestServer(t, RouterConfig{Scene: newTestScene(t), RateLimiter: rl})

	codes := make([]int, 0, 3)
	var last *http.Response
	for i := 0; i < 3; i++ {
		last = getJSON(t, ts.URL+"/health", nil)
		codes = append(codes, last.StatusCode)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 200 429], got %v", codes)
	}
	if ra := last.Header.Get("Retry-After"); ra == "" || ra == "0" {
		t.Errorf("Expected a positive Retry-After, got %q", ra)
	}
	if rl.GetStats()["rejected"] != 1 {
		t.Errorf("Expected 1 rejection, got %d", rl.GetStats()["rejected"])
	}
}

// TestRateLimitEviction tests idle clients are forgotten
func TestRateLimitEviction(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.cleanup(time.Now())
	if rl.GetStats()["clients"] != 1 {
		t.Errorf("Expected active client kept, got %+v", rl.GetStats())
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	stats := rl.GetStats()
	if stats["clients"] != 0 || stats["evicted"] != 1 {
		t.Errorf("Expected idle client evicted, got %+v", stats)
	}
	if !rl.Allow("10.0.0.1") {
		t.Error("Returning client should start with a full bucket")
	}
}

// TestProfilingMount tests pprof is only mounted on request
func TestProfilingMount(t *testing.T) {
	off := newTestServer(t, RouterConfig{Scene: newTestScene(t)})
	if resp := getJSON(t, off.URL+"/debug/pprof/", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without profiling, got %d", resp.StatusCode)
	}

	on := newTestServer(t, RouterConfig{Scene: newTestScene(t), Profiling: true})
	if resp := getJSON(t, on.URL+"/debug/pprof/", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with profiling, got %d", resp.StatusCode)
	}
}

// TestGetClientIP tests header precedence
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "127.0.0.1:1", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.9 "}, "127.0.0.1:1", "10.0.0.9"},
		{"remote addr", nil, "192.168.1.4:5555", "192.168.1.4"},
		{"bare remote", nil, "weird", "weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestSafeListenAddr tests the loopback guard
func TestSafeListenAddr(t *testing.T) {
	t.Setenv("ALLOW_DEBUG_EXTERNAL", "")
	tests := map[string]string{
		"":               defaultDebugAddr,
		"127.0.0.1:7000": "127.0.0.1:7000",
		"localhost:7000": "localhost:7000",
		"[::1]:7000":     "[::1]:7000",
		"0.0.0.0:7000":   "127.0.0.1:7000",
		"nonsense":       defaultDebugAddr,
	}
	for in, want := range tests {
		if got := SafeListenAddr(in); got != want {
			t.Errorf("SafeListenAddr(%q): expected %s, got %s", in, want, got)
		}
	}

	t.Setenv("ALLOW_DEBUG_EXTERNAL", "true")
	if got := SafeListenAddr("0.0.0.0:7000"); got != "0.0.0.0:7000" {
		t.Errorf("Expected external bind when allowed, got %s", got)
	}
}

// TestServerStartShutdown tests the listener lifecycle
func TestServerStartShutdown(t *testing.T) {
	cfg := config.DefaultDebug()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(cfg, RouterConfig{Scene: newTestScene(t), DisableLogging: true})

	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

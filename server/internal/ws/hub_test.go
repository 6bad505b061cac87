package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/api"
	"github.com/motortwin/motortwin/server/internal/store"
	wsHub "github.com/motortwin/motortwin/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

var testConfig = api.Config{HistoryWindow: 30, DashboardLimit: 50, ForecastSteps: 10}

func newStore(rs ...types.Reading) *store.Memory {
	st := store.NewMemory(0)
	for _, r := range rs {
		st.Append(context.Background(), r) //nolint:errcheck
	}
	return st
}

func reading(id string, ts float64) types.Reading {
	return types.Reading{ID: id, MotorID: "motor-1", Temperature: 60, Vibration: 2, RPM: 1480, Load: 40, Timestamp: ts, Status: "LEARNING"}
}

// startHub serves hub over httptest and runs its ticker until cleanup or cancel.
func startHub(t *testing.T, st store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testConfig, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

// snapshotData decodes a snapshot message and returns its data object.
func snapshotData(t *testing.T, msg []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["event"] != "snapshot" {
		t.Fatalf("event: got %v, want snapshot", m["event"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	return data
}

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(reading("a", 1)))

	conn := dial(t, wsURL)
	data := snapshotData(t, readMessage(t, conn))
	if data["generated_at"] == nil || data["generated_at"] == "" {
		t.Error("generated_at: missing")
	}
	if data["health"] != "LEARNING" {
		t.Errorf("health: got %v, want LEARNING", data["health"])
	}
}

func TestHub_MessageContainsReadings(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(reading("a", 1), reading("b", 2)))

	conn := dial(t, wsURL)
	data := snapshotData(t, readMessage(t, conn))
	rs, ok := data["readings"].([]interface{})
	if !ok {
		t.Fatal("readings: missing or wrong type")
	}
	if len(rs) != 2 {
		t.Errorf("readings: got %d, want 2", len(rs))
	}
	latest := data["latest"].(map[string]interface{})
	if latest["id"] != "b" {
		t.Errorf("latest id: got %v, want b", latest["id"])
	}
}

func TestHub_EmptyStore_EmptyReadings(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	conn := dial(t, wsURL)
	data := snapshotData(t, readMessage(t, conn))
	rs := data["readings"].([]interface{})
	if len(rs) != 0 {
		t.Errorf("readings: got %d, want 0", len(rs))
	}
	if _, ok := data["latest"]; ok {
		t.Error("latest: want omitted for empty store")
	}
}

func TestHub_Count_One(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume initial message

	// Give the hub a moment to register the client.
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestHub_Count_Three(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_Count_DropsOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume immediate snapshot (empty store)

	// Add a reading after connect.
	st.Append(context.Background(), reading("new", 5)) //nolint:errcheck

	// A tick may already be in flight; wait for one carrying the reading.
	var rs []interface{}
	for i := 0; i < 10 && len(rs) == 0; i++ {
		data := snapshotData(t, readMessage(t, conn))
		rs = data["readings"].([]interface{})
	}
	if len(rs) != 1 {
		t.Fatalf("tick broadcast: got %d readings, want 1", len(rs))
	}
	r := rs[0].(map[string]interface{})
	if r["id"] != "new" {
		t.Errorf("id: got %v, want new", r["id"])
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(reading("src", 1)))

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}

	// All three should receive the initial snapshot.
	for i, conn := range conns {
		msg := readMessage(t, conn)
		var m map[string]interface{}
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Errorf("client %d: unmarshal: %v", i, err)
			continue
		}
		if m["event"] != "snapshot" {
			t.Errorf("client %d: event: got %v, want snapshot", i, m["event"])
		}
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel() // signal shutdown

	// After cancel, hub should close all clients.
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testConfig, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers gets 400.
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_ObservePushesReading(t *testing.T) {
	// A long interval keeps tick broadcasts out of the way.
	hub := wsHub.New(newStore(), testConfig, time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	readMessage(t, conn) // initial snapshot
	time.Sleep(10 * time.Millisecond)

	hub.Observe(reading("pushed", 9))

	var m struct {
		Event string        `json:"event"`
		Data  types.Reading `json:"data"`
	}
	if err := json.Unmarshal(readMessage(t, conn), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != wsHub.EventReading || m.Data.ID != "pushed" {
		t.Errorf("got %+v", m)
	}
}

func TestHub_ReadingOnlySubscriber(t *testing.T) {
	hub := wsHub.New(newStore(reading("old", 1)), testConfig, testInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()
	go hub.Run(ctx)

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"?events=reading")
	time.Sleep(3 * testInterval)

	// No initial snapshot and no ticks: the first frame is the pushed reading.
	hub.Observe(reading("fresh", 2))

	var m struct {
		Event string        `json:"event"`
		Data  types.Reading `json:"data"`
	}
	if err := json.Unmarshal(readMessage(t, conn), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != wsHub.EventReading || m.Data.ID != "fresh" {
		t.Errorf("got %+v, want reading frame for fresh", m)
	}
}

func TestHub_SnapshotOnlySubscriberSkipsReadings(t *testing.T) {
	hub := wsHub.New(newStore(), testConfig, time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"?events=snapshot")
	snapshotData(t, readMessage(t, conn))
	time.Sleep(10 * time.Millisecond)

	hub.Observe(reading("ignored", 3))

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Errorf("unexpected frame: %s", msg)
	}
}

func TestHub_OriginPolicy(t *testing.T) {
	hub := wsHub.New(newStore(), testConfig, time.Hour)
	cors := api.NewCORS([]string{"https://dash.example"})
	hub.SetOriginPolicy(cors.Allowed)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		origin string
		ok     bool
	}{
		{"https://dash.example", true},
		{"https://evil.example", false},
		{"", true}, // non-browser client
	}
	for _, tc := range tests {
		hdr := http.Header{}
		if tc.origin != "" {
			hdr.Set("Origin", tc.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
		if tc.ok {
			if err != nil {
				t.Errorf("origin %q: dial: %v", tc.origin, err)
				continue
			}
			conn.Close()
			continue
		}
		if err == nil {
			conn.Close()
			t.Errorf("origin %q: upgrade accepted, want rejection", tc.origin)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("origin %q: want 403, got %v", tc.origin, resp)
		}
	}
}

package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gurkebaui/sun/internal/vigilance"
)

// #region helpers

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return ev
}

// #endregion

func TestHub_StatusThenBroadcast(t *testing.T) {
	hub := NewHub(Handlers{Status: func() any { return map[string]int{"tick": 7} }})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	first := readEvent(t, conn)
	if first["type"] != EventStatus {
		t.Fatalf("first event = %v, want status", first)
	}
	if hub.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", hub.Clients())
	}

	hub.Broadcast(Event{Type: EventTick, Data: map[string]any{"tick": 8}})
	ev := readEvent(t, conn)
	if ev["type"] != EventTick {
		t.Errorf("event type = %v, want tick", ev["type"])
	}
	data, _ := ev["data"].(map[string]any)
	if data["tick"] != float64(8) {
		t.Errorf("tick = %v, want 8", data["tick"])
	}
}

func TestHub_StimulusTriggersAlarm(t *testing.T) {
	got := make(chan vigilance.Stimulus, 1)
	hub := NewHub(Handlers{
		Status: func() any { return nil },
		Stimulus: func(s vigilance.Stimulus) bool {
			got <- s
			return s.Intensity > 80
		},
	})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readEvent(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"stimulus","type":"loud_noise","intensity":95}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case s := <-got:
		if s.Type != "loud_noise" || s.Intensity != 95 {
			t.Errorf("stimulus = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stimulus handler not called")
	}

	ev := readEvent(t, conn)
	if ev["type"] != EventAlarm {
		t.Errorf("event type = %v, want alarm", ev["type"])
	}
}

func TestHub_Say(t *testing.T) {
	said := make(chan string, 1)
	hub := NewHub(Handlers{
		Status: func() any { return nil },
		Say:    func(text string) { said <- text },
	})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readEvent(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"say","text":"good night"}`))

	select {
	case text := <-said:
		if text != "good night" {
			t.Errorf("said %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("say handler not called")
	}
}

func TestHub_StatusEndpoint(t *testing.T) {
	hub := NewHub(Handlers{Status: func() any { return map[string]bool{"is_sleeping": true} }})
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["is_sleeping"] {
		t.Errorf("body = %v", body)
	}

	empty := httptest.NewServer(NewHub(Handlers{}).Handler())
	defer empty.Close()
	resp2, err := http.Get(empty.URL + "/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status without handler = %d, want 404", resp2.StatusCode)
	}
}

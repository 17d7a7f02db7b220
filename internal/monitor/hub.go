package monitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/gurkebaui/sun/internal/logx"
	"github.com/gurkebaui/sun/internal/vigilance"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from anywhere
	},
}

// #region types

// Config controls the monitor listener. An empty Addr disables it.
type Config struct {
	Addr string `envconfig:"MONITOR_ADDR" default:":8090"`
}

// Event types pushed to clients.
const (
	EventTick   = "tick"
	EventAlarm  = "alarm"
	EventStatus = "status"
)

// Event is one JSON message sent to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Message kinds accepted from clients.
const (
	KindStimulus = "stimulus"
	KindSay      = "say"
)

// Incoming is a client message: either a stimulus or text for the agent.
type Incoming struct {
	Kind      string  `json:"kind"`
	Text      string  `json:"text,omitempty"`
	Type      string  `json:"type,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
}

// Handlers receive client messages. Nil handlers drop the message.
type Handlers struct {
	Stimulus func(vigilance.Stimulus) bool
	Say      func(text string)
	Status   func() any
}

// #endregion

// #region hub

type safeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *safeConn) write(data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return sc.WriteMessage(websocket.TextMessage, data)
}

// Hub fans agent events out to websocket clients and feeds their stimuli
// back to the agent.
type Hub struct {
	handlers Handlers
	log      zerolog.Logger

	mu    sync.RWMutex
	conns map[*safeConn]struct{}
}

// NewHub returns a hub with no clients.
func NewHub(h Handlers) *Hub {
	return &Hub{
		handlers: h,
		log:      logx.Component("monitor"),
		conns:    make(map[*safeConn]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends ev to every client. Clients that fail to receive are dropped.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("marshal event")
		return
	}

	h.mu.RLock()
	conns := make([]*safeConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug().Err(err).Msg("dropping client")
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *safeConn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		c.Close()
	}
}

// #endregion

// #region http

// Handler serves /ws for the event stream and /status for a JSON snapshot.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/status", h.serveStatus)
	return mux
}

// Serve listens on cfg.Addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, cfg Config) error {
	if cfg.Addr == "" {
		return nil
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: h.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	h.log.Info().Str("addr", cfg.Addr).Msg("monitor listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) serveStatus(w http.ResponseWriter, r *http.Request) {
	if h.handlers.Status == nil {
		http.Error(w, "status unavailable", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.handlers.Status()); err != nil {
		h.log.Error().Err(err).Msg("encode status")
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &safeConn{Conn: raw}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	defer h.remove(conn)

	if h.handlers.Status != nil {
		if data, err := json.Marshal(Event{Type: EventStatus, Data: h.handlers.Status()}); err == nil {
			conn.write(data)
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(msg)
	}
}

func (h *Hub) dispatch(msg []byte) {
	var in Incoming
	if err := json.Unmarshal(msg, &in); err != nil {
		h.log.Debug().Err(err).Msg("ignoring malformed message")
		return
	}
	switch in.Kind {
	case KindStimulus:
		if h.handlers.Stimulus == nil {
			return
		}
		s := vigilance.Stimulus{Type: in.Type, Intensity: in.Intensity}
		if h.handlers.Stimulus(s) {
			h.Broadcast(Event{Type: EventAlarm, Data: s})
		}
	case KindSay:
		if h.handlers.Say != nil && in.Text != "" {
			h.handlers.Say(in.Text)
		}
	default:
		h.log.Debug().Str("kind", in.Kind).Msg("unknown message kind")
	}
}

// #endregion

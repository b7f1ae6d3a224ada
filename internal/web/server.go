// Package web exposes the UI transport: a websocket endpoint that carries
// receive_translation frames outbound and update_translation_config frames
// inbound, plus a small HTTP API and an embedded caption page.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/session"
)

// frame is the envelope both directions share on the websocket.
type frame struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type result struct {
	Result string `json:"result"`
}

// Server broadcasts session output to connected UI clients and applies
// config updates they send back. It implements session.Sink.
type Server struct {
	rt   *config.Runtime
	port int

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool

	started   time.Time
	delivered atomic.Int64
	dropped   atomic.Int64
}

// client serializes writes to one connection through a buffered channel so a
// slow reader cannot block the broadcast path.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer(rt *config.Runtime, port int) *Server {
	return &Server{
		rt:      rt,
		port:    port,
		clients: make(map[*client]bool),
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)

	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("caption server started", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("caption server error", "err", err)
		}
	}()
}

// Deliver broadcasts one outbound message to every connected client. A
// client whose send buffer is full misses the frame; the stream is
// display-only so late joiners and laggards just pick up from the next one.
func (s *Server) Deliver(msg session.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data, err := json.Marshal(frame{Method: "receive_translation", Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
	s.mu.Unlock()

	s.delivered.Add(1)
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.mu.Unlock()
	slog.Info("ui client connected", "remote", r.RemoteAddr, "clients", n)

	go s.writeLoop(c)
	s.readLoop(c)

	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
	n = len(s.clients)
	s.mu.Unlock()
	conn.Close()
	slog.Info("ui client disconnected", "remote", r.RemoteAddr, "clients", n)
}

func (s *Server) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop consumes inbound frames until the connection drops. The only
// supported inbound method is update_translation_config.
func (s *Server) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.reply(c, fmt.Sprintf("error: bad frame: %v", err))
			continue
		}

		switch f.Method {
		case "update_translation_config":
			var u config.Update
			if err := json.Unmarshal(f.Payload, &u); err != nil {
				s.reply(c, fmt.Sprintf("error: bad payload: %v", err))
				continue
			}
			s.rt.Apply(u)
			s.reply(c, "ok")
		default:
			s.reply(c, fmt.Sprintf("error: unknown method %q", f.Method))
		}
	}
}

func (s *Server) reply(c *client, msg string) {
	data, _ := json.Marshal(result{Result: msg})
	select {
	case c.send <- data:
	default:
	}
}

// handleConfig applies a partial settings update over plain HTTP, for
// clients without a websocket. GET returns the current settings.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var u config.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, `{"result":"error: bad payload"}`, http.StatusBadRequest)
			return
		}
		s.rt.Apply(u)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsView(s.rt.Snapshot()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	clients := len(s.clients)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uptime_s":  int64(time.Since(s.started).Seconds()),
		"clients":   clients,
		"delivered": s.delivered.Load(),
		"dropped":   s.dropped.Load(),
		"settings":  settingsView(s.rt.Snapshot()),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, captionHTML)
}

// settingsView renders Settings with durations in milliseconds, mirroring
// the update_translation_config field names.
func settingsView(s config.Settings) map[string]any {
	return map[string]any{
		"source":                   s.SourceLang,
		"target":                   s.TargetLang,
		"debounce":                 int(s.Debounce.Milliseconds()),
		"batch_size":               s.BatchSize,
		"batch_timeout_ms":         int(s.BatchTimeout.Milliseconds()),
		"sync_display_mode":        s.SyncDisplayMode,
		"interim_debounce_enabled": s.InterimDebounceEnabled,
	}
}

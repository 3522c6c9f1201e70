// Package bridge exposes a link.Manager over HTTP: a WebSocket endpoint that
// streams connection events as JSON and accepts connect/send/disconnect
// commands, plus a plain state query.
package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sppchat/internal/link"
)

// Controller is the part of link.Manager the bridge drives.
type Controller interface {
	Connect(peer string) error
	Send(text string) error
	Disconnect() error
	State() link.State
	Peer() string
}

// Subscriber hands out event subscriptions, as hub.Hub does.
type Subscriber interface {
	Subscribe(name string) (<-chan link.Event, func())
}

// EventJSON is one event as sent to WebSocket clients.
type EventJSON struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Peer      string    `json:"peer,omitempty"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Notice    string    `json:"notice,omitempty"`
}

// Command is sent by WebSocket clients.
type Command struct {
	Op   string `json:"op"` // "connect" | "send" | "disconnect" | "state"
	Peer string `json:"peer,omitempty"`
	Text string `json:"text,omitempty"`
}

// Reply answers one Command.
type Reply struct {
	Type   string `json:"type"` // always "reply"
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
	Notice string `json:"notice,omitempty"`
}

// StateJSON is returned by GET /api/v1/state.
type StateJSON struct {
	State string `json:"state"`
	Peer  string `json:"peer,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

const pingInterval = 20 * time.Second

// Server holds handler dependencies.
type Server struct {
	ctl  Controller
	subs Subscriber
	log  *zap.Logger
}

// NewRouter wires the bridge routes.
func NewRouter(ctl Controller, subs Subscriber, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{ctl: ctl, subs: subs, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/state", s.state)
	mux.HandleFunc("GET /api/v1/events", s.eventStream)
	return withLogging(log, mux)
}

// NewEventJSON converts e for the wire.
func NewEventJSON(e link.Event) EventJSON {
	out := EventJSON{
		Type:      e.Kind.String(),
		Timestamp: time.Now().UTC(),
		Peer:      e.Peer,
		Notice:    e.String(),
	}
	if e.Kind == link.EventMessage {
		out.Text = e.Text
		out.Notice = ""
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StateJSON{State: s.ctl.State().String(), Peer: s.ctl.Peer()})
}

func (s *Server) eventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("bridge: ws upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, unsub := s.subs.Subscribe("ws:" + r.RemoteAddr)
	defer unsub()

	replies := make(chan Reply, 16)
	readDone := make(chan struct{})
	go s.readCommands(conn, replies, readDone)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(NewEventJSON(evt)); err != nil {
				s.log.Debug("bridge: ws write", zap.Error(err))
				return
			}
		case rep := <-replies:
			if err := conn.WriteJSON(rep); err != nil {
				s.log.Debug("bridge: ws write", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readCommands executes client commands until the connection fails.
// Writing stays on the eventStream goroutine.
func (s *Server) readCommands(conn *websocket.Conn, replies chan<- Reply, done chan<- struct{}) {
	defer close(done)
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.log.Debug("bridge: ws read", zap.Error(err))
			}
			return
		}
		rep := s.execute(cmd)
		select {
		case replies <- rep:
		default:
			s.log.Warn("bridge: reply dropped", zap.String("op", cmd.Op))
		}
	}
}

func (s *Server) execute(cmd Command) Reply {
	var err error
	switch cmd.Op {
	case "connect":
		err = s.ctl.Connect(cmd.Peer)
	case "send":
		err = s.ctl.Send(cmd.Text)
	case "disconnect":
		err = s.ctl.Disconnect()
	case "state":
	default:
		err = errors.New("bridge: unknown op " + cmd.Op)
	}
	rep := Reply{Type: "reply", Op: cmd.Op, OK: err == nil, State: s.ctl.State().String()}
	if err != nil {
		rep.Error = err.Error()
		rep.Notice = link.Describe(err)
	}
	return rep
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("bridge",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

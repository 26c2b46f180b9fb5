package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/tabshell/desktopsync"
	"pkt.systems/tabshell/schema"
)

const (
	surfaceWriteWait  = 10 * time.Second
	surfacePongWait   = 60 * time.Second
	surfacePingPeriod = surfacePongWait * 9 / 10
	surfaceMaxMessage = 1 << 20
)

// surfaceFrame is one websocket frame exchanged with a content surface.
type surfaceFrame struct {
	Type     string                   `json:"type"`
	Meta     *desktopsync.SurfaceMeta `json:"meta,omitempty"`
	Message  *desktopsync.Message     `json:"message,omitempty"`
	Changed  *bool                    `json:"changed,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Channels []string                 `json:"channels,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Surfaces are served from the configured content origin, not from this server.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleSurface connects a content surface. It receives every synchronizer
// message and may report its navigation state as "meta" frames.
func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	tabID := schema.TabID(r.URL.Query().Get("tab"))
	log := requestLogger(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http surface upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	messages, unsubscribe := s.hub.Subscribe(AudienceSurface)
	defer unsubscribe()

	replies := make(chan surfaceFrame, 16)
	done := make(chan struct{})
	go s.surfaceWriter(conn, messages, replies, done)

	log.Info("http surface connected")
	replies <- surfaceFrame{Type: "hello", Channels: desktopsync.Channels()}

	conn.SetReadLimit(surfaceMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(surfacePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(surfacePongWait))
	})

	for {
		var frame surfaceFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("http surface read failed", "err", err)
			}
			break
		}
		reply := s.surfaceReply(r, tabID, frame)
		select {
		case replies <- reply:
		case <-done:
		}
	}
	close(replies)
	<-done
	log.Info("http surface disconnected")
}

func (s *Server) surfaceReply(r *http.Request, tabID schema.TabID, frame surfaceFrame) surfaceFrame {
	switch frame.Type {
	case "ping":
		return surfaceFrame{Type: "pong"}
	case "meta":
		if frame.Meta == nil {
			return surfaceFrame{Type: "error", Error: "missing meta"}
		}
		if tabID == "" {
			return surfaceFrame{Type: "error", Error: "surface has no tab"}
		}
		meta := *frame.Meta
		// A surface only reports its own tab.
		if meta.TabID != "" && meta.TabID != tabID {
			return surfaceFrame{Type: "error", Error: "meta for another tab"}
		}
		meta.TabID = tabID
		resp, err := s.sync.ApplySurfaceMeta(r.Context(), meta)
		if err != nil {
			return surfaceFrame{Type: "error", Error: err.Error()}
		}
		changed := resp.Changed
		return surfaceFrame{Type: "ack", Changed: &changed}
	default:
		return surfaceFrame{Type: "error", Error: "unknown frame type"}
	}
}

// surfaceWriter is the only goroutine writing to conn.
func (s *Server) surfaceWriter(conn *websocket.Conn, messages <-chan desktopsync.Message, replies <-chan surfaceFrame, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(surfacePingPeriod)
	defer ticker.Stop()
	write := func(frame surfaceFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(surfaceWriteWait))
		return conn.WriteJSON(frame) == nil
	}
	fail := func() {
		// Unblocks the reader so it closes replies.
		_ = conn.Close()
		drain(replies)
	}
	for {
		select {
		case frame, ok := <-replies:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(surfaceWriteWait))
				return
			}
			if !write(frame) {
				fail()
				return
			}
		case msg, ok := <-messages:
			if !ok {
				fail()
				return
			}
			if !write(surfaceFrame{Type: "message", Message: &msg}) {
				fail()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(surfaceWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail()
				return
			}
		}
	}
}

// drain consumes replies until the reader closes them.
func drain(replies <-chan surfaceFrame) {
	for range replies {
	}
}

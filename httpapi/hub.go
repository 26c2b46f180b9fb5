package httpapi

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/desktopsync"
)

// Audience tells host windows and nested content surfaces apart.
type Audience string

const (
	// AudienceWindow is a host window following the SSE stream.
	AudienceWindow Audience = "window"
	// AudienceSurface is a content surface connected over websocket.
	AudienceSurface Audience = "surface"
)

// Hub fans synchronizer messages out to every connected window and surface.
type Hub struct {
	mu          sync.Mutex
	subs        map[chan desktopsync.Message]Audience
	history     []desktopsync.Message
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan desktopsync.Message]Audience),
		historySize: historySize,
		log:         logger,
	}
}

// Broadcast implements desktopsync.Broadcaster.
func (h *Hub) Broadcast(msg desktopsync.Message) {
	h.mu.Lock()
	h.history = append(h.history, msg)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	subs := make([]chan desktopsync.Message, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	// Sends happen under the lock so that unsubscribe cannot close a
	// channel mid-send; they never block.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- msg:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	h.log.Trace("hub message", "channel", msg.Channel, "seq", msg.Seq, "subs", len(subs))
	if dropped > 0 {
		h.log.Warn("hub message dropped", "channel", msg.Channel, "seq", msg.Seq, "dropped", dropped)
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes and may
// be called more than once.
func (h *Hub) Subscribe(audience Audience) (<-chan desktopsync.Message, func()) {
	ch := make(chan desktopsync.Message, 256)
	h.mu.Lock()
	h.subs[ch] = audience
	count := len(h.subs)
	h.mu.Unlock()
	h.log.Info("hub subscribe", "audience", audience, "subs", count)
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Info("hub unsubscribe", "audience", audience, "subs", remaining)
		})
	}
	return ch, unsub
}

// Replay returns messages after the provided seq.
func (h *Hub) Replay(after uint64) []desktopsync.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]desktopsync.Message, 0, len(h.history))
	for _, msg := range h.history {
		if msg.Seq > after {
			out = append(out, msg)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(out))
	return out
}

// Counts reports subscribers per audience.
func (h *Hub) Counts() map[Audience]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[Audience]int, 2)
	for _, a := range h.subs {
		out[a]++
	}
	return out
}

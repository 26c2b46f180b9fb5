package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTopology carries the full topology after a committed write.
	EventTopology EventType = "topology"
	// EventTabAction carries a tab action record.
	EventTabAction EventType = "tab-action"
	// EventToggleRightSidebar asks one tab to toggle its right sidebar.
	EventToggleRightSidebar EventType = "toggle-right-sidebar"
	// EventMaximized carries the host window maximized flag.
	EventMaximized EventType = "maximized"
	// EventFullScreen carries the host window full-screen flag.
	EventFullScreen EventType = "full-screen"
	// EventSurfaceAdded reports a surface was constructed by the registry.
	EventSurfaceAdded EventType = "surface-added"
	// EventSurfaceRemoved reports a surface was destroyed by the registry.
	EventSurfaceRemoved EventType = "surface-removed"
)

// Event is one message on the bus.
type Event struct {
	Seq      uint64
	Type     EventType
	Topology schema.Topology
	Action   schema.TabAction
	TabID    schema.TabID
	Flag     bool
}

// Handler receives events synchronously, in publish order.
type Handler func(Event)

// Bus delivers events to channel and callback subscribers. Delivery is serial:
// events are queued in publish order and drained by one goroutine at a time,
// so a handler that publishes does not re-enter other handlers.
type Bus struct {
	mu       sync.Mutex
	chans    map[chan Event]struct{}
	handlers map[uint64]Handler
	order    []uint64
	nextID   uint64
	seq      uint64
	queue    []Event
	draining bool
	log      pslog.Logger
	depth    int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		chans:    make(map[chan Event]struct{}),
		handlers: make(map[uint64]Handler),
		log:      logger,
		depth:    256,
	}
}

// Subscribe registers a channel subscriber and returns the channel + cancel.
// A full channel drops events rather than blocking the bus.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.chans[ch] = struct{}{}
	count := len(b.chans)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.chans, ch)
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe")
			}
		})
	}
}

// SubscribeFunc registers a synchronous handler. Handlers run in
// registration order. The returned cancel is idempotent.
func (b *Bus) SubscribeFunc(fn Handler) func() {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			for i, existing := range b.order {
				if existing == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Publish enqueues the event and drains the queue unless another goroutine
// already is.
func (b *Bus) Publish(event Event) {
	b.Enqueue(event)
	b.Flush()
}

// Enqueue appends the event to the delivery queue without delivering it.
// Callers holding their own lock enqueue under it to fix the order, then
// Flush after releasing it.
func (b *Bus) Enqueue(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	b.queue = append(b.queue, event)
	b.mu.Unlock()
}

// Flush delivers queued events.
func (b *Bus) Flush() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		event := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]Handler, 0, len(b.order))
		for _, id := range b.order {
			handlers = append(handlers, b.handlers[id])
		}
		chans := make([]chan Event, 0, len(b.chans))
		for ch := range b.chans {
			chans = append(chans, ch)
		}
		b.mu.Unlock()
		b.deliver(event, handlers, chans)
		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

func (b *Bus) deliver(event Event, handlers []Handler, chans []chan Event) {
	for _, fn := range handlers {
		b.call(fn, event)
	}
	dropped := 0
	b.mu.Lock()
	for _, ch := range chans {
		if _, ok := b.chans[ch]; !ok {
			continue
		}
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}

func (b *Bus) call(fn Handler, event Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("eventbus handler panic", "type", event.Type, "panic", r)
		}
	}()
	fn(event)
}

// OnTopologyChanged publishes a topology event.
func (b *Bus) OnTopologyChanged(topo schema.Topology) {
	b.Publish(Event{Type: EventTopology, Topology: topo.Clone()})
}

// OnTabAction publishes a tab action.
func (b *Bus) OnTabAction(action schema.TabAction) {
	b.Publish(Event{Type: EventTabAction, Action: action, TabID: action.Target()})
}

// OnToggleRightSidebar publishes a toggle-right-sidebar request.
func (b *Bus) OnToggleRightSidebar(id schema.TabID) {
	b.Publish(Event{Type: EventToggleRightSidebar, TabID: id})
}

// OnMaximized publishes the maximized flag.
func (b *Bus) OnMaximized(maximized bool) {
	b.Publish(Event{Type: EventMaximized, Flag: maximized})
}

// OnFullScreen publishes the full-screen flag.
func (b *Bus) OnFullScreen(fullScreen bool) {
	b.Publish(Event{Type: EventFullScreen, Flag: fullScreen})
}

// Package layout positions the chrome and content surfaces inside the host
// window and decides which content surface is visible.
package layout

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

// Surfaces looks up live surfaces.
type Surfaces interface {
	Get(id schema.TabID) (*viewregistry.Handle, bool)
	Content() []*viewregistry.Handle
}

// Config sizes the layout.
type Config struct {
	ChromeHeight int
	Window       schema.Rect
}

// Coordinator applies bounds, visibility and z-order. Applying the same state
// twice issues no surface calls.
type Coordinator struct {
	mu           sync.Mutex
	surfaces     Surfaces
	log          pslog.Logger
	baseCtx      context.Context
	chromeHeight int
	window       schema.Rect
	chromeRect   *schema.Rect
	active       schema.TabID
	want         schema.TabID
	applied      map[schema.TabID]schema.Rect
	visible      map[schema.TabID]bool
	top          schema.TabID
	chromeOnTop  bool
}

// New constructs a Coordinator.
func New(ctx context.Context, cfg Config, surfaces Surfaces, logger pslog.Logger) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	if cfg.ChromeHeight <= 0 {
		cfg.ChromeHeight = schema.DefaultChromeHeight
	}
	return &Coordinator{
		surfaces:     surfaces,
		log:          logger,
		baseCtx:      context.WithoutCancel(ctx),
		chromeHeight: cfg.ChromeHeight,
		window:       cfg.Window,
		applied:      make(map[schema.TabID]schema.Rect),
		visible:      make(map[schema.TabID]bool),
	}
}

// ChromeRect returns the chrome band: explicit bounds set since the last
// resize, else the top of the window at full width.
func (c *Coordinator) ChromeRect() schema.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chromeRectLocked()
}

func (c *Coordinator) chromeRectLocked() schema.Rect {
	if c.chromeRect != nil {
		return *c.chromeRect
	}
	return schema.Rect{X: 0, Y: 0, Width: c.window.Width, Height: c.chromeHeight}
}

// ContentRect returns the area below the chrome band.
func (c *Coordinator) ContentRect() schema.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentRectLocked()
}

func (c *Coordinator) contentRectLocked() schema.Rect {
	height := c.window.Height - c.chromeHeight
	if height < 0 {
		height = 0
	}
	return schema.Rect{X: 0, Y: c.chromeHeight, Width: c.window.Width, Height: height}
}

// Active returns the content surface id last brought to front.
func (c *Coordinator) Active() schema.TabID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Visible returns the ids currently marked visible.
func (c *Coordinator) Visible() []schema.TabID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.TabID, 0, 2)
	for id, v := range c.visible {
		if v {
			out = append(out, id)
		}
	}
	return out
}

// Resize records new window bounds and repositions every live surface. The
// chrome goes back to the full-width band; explicit bounds from
// SetChromeBounds only hold until the next resize.
func (c *Coordinator) Resize(ctx context.Context, window schema.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == window {
		return
	}
	c.window = window
	c.chromeRect = nil
	c.log.Debug("layout window resized", "width", window.Width, "height", window.Height)
	c.applyAllLocked(ctx)
}

// SetChromeBounds pins the chrome to rect and makes it visible.
func (c *Coordinator) SetChromeBounds(ctx context.Context, rect schema.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chromeRect = &rect
	c.applyChromeLocked(ctx)
}

// BringToFront makes id the only visible content surface, keeping the chrome
// visible and on top. It reports false when id has no live surface.
func (c *Coordinator) BringToFront(ctx context.Context, id schema.TabID) bool {
	if id.IsShell() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.surfaces.Get(id)
	if !ok {
		return false
	}
	c.frontLocked(ctx, h)
	return true
}

func (c *Coordinator) frontLocked(ctx context.Context, h *viewregistry.Handle) {
	id := h.ID
	c.active = id
	c.want = id
	c.applyBoundsLocked(ctx, h, c.contentRectLocked())
	for _, other := range c.surfaces.Content() {
		if other.ID != id {
			c.setVisibleLocked(ctx, other, false)
		}
	}
	c.setVisibleLocked(ctx, h, true)
	if c.top != id {
		if err := h.Surface.Raise(ctx); err != nil {
			c.log.Warn("layout raise failed", "id", id, "err", err)
		}
		c.top = id
		c.chromeOnTop = false
	}
	c.applyChromeLocked(ctx)
	c.log.Trace("layout front", "id", id)
}

// Want records the content surface that should be in front once it exists.
func (c *Coordinator) Want(id schema.TabID) {
	c.mu.Lock()
	c.want = id
	c.mu.Unlock()
}

// SurfaceAdded applies pending bounds to a surface that finished construction.
func (c *Coordinator) SurfaceAdded(ctx context.Context, id schema.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.surfaces.Get(id)
	if !ok {
		return
	}
	if id.IsShell() {
		c.chromeOnTop = false
		c.applyChromeLocked(ctx)
		return
	}
	c.applyBoundsLocked(ctx, h, c.contentRectLocked())
	if id == c.want {
		c.frontLocked(ctx, h)
		return
	}
	c.setVisibleLocked(ctx, h, false)
}

// SurfaceRemoved forgets state of a destroyed surface.
func (c *Coordinator) SurfaceRemoved(id schema.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.applied, id)
	delete(c.visible, id)
	if c.top == id {
		c.top = ""
	}
	if c.active == id {
		c.active = ""
	}
}

// Attach follows registry and topology events on bus.
func (c *Coordinator) Attach(bus *eventbus.Bus) func() {
	return bus.SubscribeFunc(func(ev eventbus.Event) {
		switch ev.Type {
		case eventbus.EventSurfaceAdded:
			c.SurfaceAdded(c.baseCtx, ev.TabID)
		case eventbus.EventSurfaceRemoved:
			c.SurfaceRemoved(ev.TabID)
		case eventbus.EventTopology:
			id := ev.Topology.ActiveWorkbenchID
			if id != "" && id != c.Active() {
				c.Want(id)
				c.BringToFront(c.baseCtx, id)
			}
		}
	})
}

func (c *Coordinator) applyAllLocked(ctx context.Context) {
	content := c.contentRectLocked()
	for _, h := range c.surfaces.Content() {
		c.applyBoundsLocked(ctx, h, content)
	}
	c.applyChromeLocked(ctx)
}

func (c *Coordinator) applyChromeLocked(ctx context.Context) {
	h, ok := c.surfaces.Get(schema.ShellID)
	if !ok {
		return
	}
	c.applyBoundsLocked(ctx, h, c.chromeRectLocked())
	c.setVisibleLocked(ctx, h, true)
	if !c.chromeOnTop {
		if err := h.Surface.Raise(ctx); err != nil {
			c.log.Warn("layout raise failed", "id", h.ID, "err", err)
			return
		}
		c.chromeOnTop = true
	}
}

func (c *Coordinator) applyBoundsLocked(ctx context.Context, h *viewregistry.Handle, rect schema.Rect) {
	if rect.Empty() {
		return
	}
	if prev, ok := c.applied[h.ID]; ok && prev == rect {
		return
	}
	if err := h.Surface.SetBounds(ctx, rect); err != nil {
		c.log.Warn("layout bounds failed", "id", h.ID, "err", err)
		return
	}
	c.applied[h.ID] = rect
	c.log.Trace("layout bounds applied", "id", h.ID, "x", rect.X, "y", rect.Y, "width", rect.Width, "height", rect.Height)
}

func (c *Coordinator) setVisibleLocked(ctx context.Context, h *viewregistry.Handle, visible bool) {
	if prev, ok := c.visible[h.ID]; ok && prev == visible {
		return
	}
	if err := h.Surface.SetVisible(ctx, visible); err != nil {
		c.log.Warn("layout visibility failed", "id", h.ID, "err", err)
		return
	}
	c.visible[h.ID] = visible
}

package layout

import (
	"context"
	"sort"
	"testing"

	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

type fixture struct {
	bus     *eventbus.Bus
	factory *surface.MemoryFactory
	reg     *viewregistry.Registry
	layout  *Coordinator
}

func newFixture(t *testing.T, window schema.Rect) *fixture {
	t.Helper()
	bus := eventbus.New(nil)
	factory := surface.NewMemoryFactory()
	reg, err := viewregistry.New(context.Background(), viewregistry.Deps{Factory: factory, Bus: bus})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	coord := New(context.Background(), Config{ChromeHeight: 52, Window: window}, reg, nil)
	coord.Attach(bus)
	return &fixture{bus: bus, factory: factory, reg: reg, layout: coord}
}

func (f *fixture) ensure(t *testing.T, id schema.TabID) {
	t.Helper()
	if _, err := f.reg.Ensure(context.Background(), id); err != nil {
		t.Fatalf("ensure %s: %v", id, err)
	}
}

func visibleIDs(c *Coordinator) []string {
	var out []string
	for _, id := range c.Visible() {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

func TestRectsSplitWindow(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	if got := f.layout.ChromeRect(); got != (schema.Rect{Width: 1000, Height: 52}) {
		t.Fatalf("unexpected chrome rect %+v", got)
	}
	if got := f.layout.ContentRect(); got != (schema.Rect{Y: 52, Width: 1000, Height: 648}) {
		t.Fatalf("unexpected content rect %+v", got)
	}
}

func TestBringToFrontShowsExactlyOneContentSurface(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	ctx := context.Background()
	f.ensure(t, schema.ShellID)
	f.ensure(t, "a")
	f.ensure(t, "b")

	if !f.layout.BringToFront(ctx, "a") {
		t.Fatalf("expected bring to front to succeed")
	}
	if got := visibleIDs(f.layout); len(got) != 2 || got[0] != "a" || got[1] != "shell" {
		t.Fatalf("expected [a shell] visible, got %v", got)
	}
	f.layout.BringToFront(ctx, "b")
	if got := visibleIDs(f.layout); len(got) != 2 || got[0] != "b" || got[1] != "shell" {
		t.Fatalf("expected [b shell] visible, got %v", got)
	}
	shell := f.factory.Latest(schema.ShellID).State()
	b := f.factory.Latest("b").State()
	if shell.Z <= b.Z {
		t.Fatalf("expected chrome above content, got chrome z=%d content z=%d", shell.Z, b.Z)
	}
	if f.factory.Latest("a").State().Visible {
		t.Fatalf("expected a hidden")
	}
}

func TestBringToFrontIsIdempotent(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	ctx := context.Background()
	f.ensure(t, schema.ShellID)
	f.ensure(t, "a")
	f.layout.BringToFront(ctx, "a")
	before := f.factory.Latest("a").State()
	shellBefore := f.factory.Latest(schema.ShellID).State()
	f.layout.BringToFront(ctx, "a")
	after := f.factory.Latest("a").State()
	shellAfter := f.factory.Latest(schema.ShellID).State()
	if before != after || shellBefore != shellAfter {
		t.Fatalf("second bring to front changed state: %+v -> %+v", before, after)
	}
}

func TestBringToFrontUnknownIsNoop(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	if f.layout.BringToFront(context.Background(), "missing") {
		t.Fatalf("expected false for missing surface")
	}
	if f.layout.BringToFront(context.Background(), schema.ShellID) {
		t.Fatalf("expected false for chrome id")
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	ctx := context.Background()
	f.ensure(t, "a")
	f.layout.BringToFront(ctx, "a")
	window := schema.Rect{Width: 1200, Height: 800}
	f.layout.Resize(ctx, window)
	f.layout.Resize(ctx, window)
	state := f.factory.Latest("a").State()
	if state.Bounds != (schema.Rect{Y: 52, Width: 1200, Height: 748}) {
		t.Fatalf("unexpected bounds %+v", state.Bounds)
	}
	if state.BoundsCalls != 2 {
		t.Fatalf("expected initial + one resize bounds call, got %d", state.BoundsCalls)
	}
}

func TestResizeDuringConstructionAppliesOnce(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	f.factory.SetGate(func(context.Context, surface.Spec) error {
		close(started)
		<-release
		return nil
	})
	f.layout.Want("a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.reg.Ensure(context.Background(), "a"); err != nil {
			t.Errorf("ensure: %v", err)
		}
	}()
	<-started
	f.layout.Resize(ctx, schema.Rect{Width: 1280, Height: 720})
	close(release)
	<-done

	f.layout.BringToFront(ctx, "a")
	state := f.factory.Latest("a").State()
	if state.BoundsCalls != 1 {
		t.Fatalf("expected pending bounds applied exactly once, got %d", state.BoundsCalls)
	}
	if state.Bounds != (schema.Rect{Y: 52, Width: 1280, Height: 668}) {
		t.Fatalf("expected bounds from latest resize, got %+v", state.Bounds)
	}
	if !state.Visible {
		t.Fatalf("expected wanted surface visible once constructed")
	}
}

func TestSetChromeBoundsOverridesBand(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	f.ensure(t, schema.ShellID)
	rect := schema.Rect{X: 80, Y: 0, Width: 920, Height: 40}
	f.layout.SetChromeBounds(context.Background(), rect)
	state := f.factory.Latest(schema.ShellID).State()
	if state.Bounds != rect || !state.Visible {
		t.Fatalf("expected explicit chrome bounds and visible, got %+v", state)
	}
}

func TestResizeRestoresFullWidthChromeBand(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	f.ensure(t, schema.ShellID)
	f.layout.SetChromeBounds(context.Background(), schema.Rect{X: 80, Width: 920, Height: 40})
	f.layout.Resize(context.Background(), schema.Rect{Width: 1200, Height: 800})
	want := schema.Rect{Width: 1200, Height: 52}
	if got := f.layout.ChromeRect(); got != want {
		t.Fatalf("expected chrome band after resize, got %+v", got)
	}
	if state := f.factory.Latest(schema.ShellID).State(); state.Bounds != want || !state.Visible {
		t.Fatalf("expected chrome surface at %+v, got %+v", want, state)
	}
	if got := f.layout.ContentRect(); got != (schema.Rect{Y: 52, Width: 1200, Height: 748}) {
		t.Fatalf("unexpected content rect %+v", got)
	}
}

func TestTopologyChangeBringsActiveToFront(t *testing.T) {
	f := newFixture(t, schema.Rect{Width: 1000, Height: 700})
	f.ensure(t, "a")
	f.ensure(t, "b")
	f.bus.OnTopologyChanged(schema.Topology{
		Workbenches:       []schema.Workbench{{ID: "a"}, {ID: "b"}},
		ActiveWorkbenchID: "b",
	})
	if f.layout.Active() != "b" {
		t.Fatalf("expected b active, got %q", f.layout.Active())
	}
	f.reg.Destroy("b")
	if f.layout.Active() != "" {
		t.Fatalf("expected active cleared after destroy, got %q", f.layout.Active())
	}
}

package core

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/schema"
)

func TestConcurrentActionsKeepTopologyConsistent(t *testing.T) {
	f := newFixture(t, &schema.Topology{
		Workbenches: []schema.Workbench{
			wb("t1", false, "a", "b", "c"),
			wb("t2", true, "d", "e"),
			wb("t3", false, "f"),
		},
		ActiveWorkbenchID: "t1",
	})
	ctx := context.Background()
	if err := f.svc.Preload(ctx); err != nil {
		t.Fatalf("preload: %v", err)
	}

	const workers, rounds = 8, 60
	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rnd := rand.New(rand.NewPCG(seed, seed*7+1))
			for i := 0; i < rounds; i++ {
				topo := f.store.Get()
				var target schema.TabID
				if n := len(topo.Workbenches); n > 0 {
					target = topo.Workbenches[rnd.IntN(n)].ID
				}
				var err error
				switch rnd.IntN(7) {
				case 0:
					_, err = f.svc.AddTab(ctx, schema.AddTabRequest{})
				case 1:
					_, err = f.svc.CloseTab(ctx, schema.CloseTabRequest{TabID: target})
				case 2:
					_, err = f.svc.PinTab(ctx, schema.PinTabRequest{TabID: target, ShouldPin: rnd.IntN(2) == 0})
				case 3:
					_, err = f.svc.SeparateView(ctx, schema.SeparateViewRequest{TabID: target, ViewIndex: rnd.IntN(3)})
				case 4:
					_, err = f.svc.ActivateView(ctx, schema.ActivateViewRequest{TabID: target, ViewIndex: rnd.IntN(4) - 1})
				case 5:
					_, err = f.svc.ShowTab(ctx, schema.ShowTabRequest{TabID: target})
				case 6:
					_, err = f.svc.BringToFront(ctx, schema.BringToFrontRequest{TabID: target})
				}
				if err != nil {
					errs <- err
				}
			}
		}(uint64(w + 1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("action failed: %v", err)
	}

	topo := f.store.Get()
	if len(topo.Workbenches) == 0 {
		t.Fatalf("expected at least one tab")
	}
	if topo.Index(topo.ActiveWorkbenchID) == -1 {
		t.Fatalf("active tab %q does not exist", topo.ActiveWorkbenchID)
	}
	seen := make(map[schema.TabID]bool, len(topo.Workbenches))
	unpinned := false
	for _, w := range topo.Workbenches {
		if seen[w.ID] {
			t.Fatalf("duplicate tab %s", w.ID)
		}
		seen[w.ID] = true
		if len(w.Views) == 0 {
			t.Fatalf("tab %s has no views", w.ID)
		}
		if w.ActiveViewIndex < 0 || w.ActiveViewIndex >= len(w.Views) {
			t.Fatalf("tab %s has active view %d of %d", w.ID, w.ActiveViewIndex, len(w.Views))
		}
		if w.Pinned && unpinned {
			t.Fatalf("pinned tab %s after an unpinned one", w.ID)
		}
		unpinned = unpinned || !w.Pinned
	}

	visible := 0
	for id, h := range f.reg.List() {
		if id.IsShell() {
			continue
		}
		if !seen[id] {
			t.Fatalf("registry leaked a surface for closed tab %s", id)
		}
		if ms, ok := h.Surface.(*surface.MemorySurface); ok && ms.State().Visible {
			visible++
		}
	}
	if visible > 1 {
		t.Fatalf("expected at most one visible content surface, got %d", visible)
	}
	if !f.factory.Latest(schema.ShellID).State().Visible {
		t.Fatalf("expected chrome visible")
	}
}

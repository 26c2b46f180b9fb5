package desktopsync

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/titles"
	"pkt.systems/tabshell/schema"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Broadcast(msg Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

type fakeTopology struct {
	mu    sync.Mutex
	topo  schema.Topology
	calls []schema.UpdateWorkbenchMetaRequest
}

func (f *fakeTopology) GetTopology(context.Context) (schema.Topology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topo.Clone(), nil
}

func (f *fakeTopology) UpdateWorkbenchMeta(_ context.Context, req schema.UpdateWorkbenchMetaRequest) (schema.ActionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	idx := f.topo.Index(req.TabID)
	if idx == -1 {
		return schema.ActionResponse{Topology: f.topo}, nil
	}
	f.topo.Workbenches[idx] = req.Patch.Apply(f.topo.Workbenches[idx])
	return schema.ActionResponse{Topology: f.topo, Changed: true}, nil
}

func newSync(t *testing.T, topo *fakeTopology) (*Synchronizer, *eventbus.Bus, *recorder) {
	t.Helper()
	catalog := titles.NewCatalog()
	catalog.Put("d1", titles.DocEntry{Title: "Roadmap"})
	catalog.Put("j1", titles.DocEntry{Journal: "2024-03-05"})
	bus := eventbus.New(nil)
	s, err := New(Deps{Bus: bus, Titles: titles.NewResolver(catalog, catalog), Topology: topo})
	if err != nil {
		t.Fatalf("new synchronizer: %v", err)
	}
	rec := &recorder{}
	s.AddTarget(rec)
	stop := s.Start()
	t.Cleanup(stop)
	return s, bus, rec
}

func TestChannelsUseNamespace(t *testing.T) {
	want := []string{
		"ui:onFullScreen",
		"ui:onMaximized",
		"ui:onTabAction",
		"ui:onTabViewsMetaChanged",
		"ui:onToggleRightSidebar",
	}
	got := Channels()
	if len(got) != len(want) {
		t.Fatalf("unexpected channels %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %s, got %s", want[i], got[i])
		}
	}
}

func TestTopologyBroadcastIsEnriched(t *testing.T) {
	_, bus, rec := newSync(t, &fakeTopology{})
	bus.OnTopologyChanged(schema.Topology{
		Workbenches: []schema.Workbench{{
			ID:       "t1",
			Basename: "/workspace/ws1",
			Views: []schema.View{
				{ID: "v1", Path: &schema.ViewLocation{Pathname: "/all"}},
				{ID: "v2", Path: &schema.ViewLocation{Pathname: "/j1"}},
				{ID: "v3"},
			},
		}},
		ActiveWorkbenchID: "t1",
	})
	msgs := rec.messages()
	if len(msgs) != 1 || msgs[0].Channel != "ui:onTabViewsMetaChanged" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	var topo schema.Topology
	if err := json.Unmarshal(msgs[0].Payload, &topo); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	views := topo.Workbenches[0].Views
	if views[0].Title != "All pages" || views[0].ModuleName != "all" {
		t.Fatalf("unexpected first view %+v", views[0])
	}
	if views[1].Title != "Mar 5, 2024" || views[1].ModuleName != "journal" {
		t.Fatalf("unexpected journal view %+v", views[1])
	}
	if views[2].Title != "" {
		t.Fatalf("expected pathless view untouched, got %+v", views[2])
	}
}

func TestBroadcastOrderFollowsCommits(t *testing.T) {
	s, bus, rec := newSync(t, &fakeTopology{})
	bus.OnTabAction(schema.CloseTabAction("t1"))
	bus.OnToggleRightSidebar("t2")
	bus.OnMaximized(true)
	bus.OnFullScreen(false)

	msgs := rec.messages()
	want := []string{"ui:onTabAction", "ui:onToggleRightSidebar", "ui:onMaximized", "ui:onFullScreen"}
	if len(msgs) != len(want) {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	for i, msg := range msgs {
		if msg.Channel != want[i] {
			t.Fatalf("message %d: expected %s, got %s", i, want[i], msg.Channel)
		}
		if i > 0 && msg.Seq <= msgs[i-1].Seq {
			t.Fatalf("expected increasing seq")
		}
	}
	if string(msgs[1].Payload) != `"t2"` || string(msgs[2].Payload) != "true" {
		t.Fatalf("unexpected payloads %s %s", msgs[1].Payload, msgs[2].Payload)
	}
	if snap := s.Snapshot(); len(snap) != 4 || snap[0].Channel != "ui:onTabAction" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRemovedTargetStopsReceiving(t *testing.T) {
	s, bus, rec := newSync(t, &fakeTopology{})
	extra := &recorder{}
	remove := s.AddTarget(extra)
	bus.OnMaximized(true)
	remove()
	remove()
	bus.OnMaximized(false)
	if got := len(extra.messages()); got != 1 {
		t.Fatalf("expected 1 message on removed target, got %d", got)
	}
	if got := len(rec.messages()); got != 2 {
		t.Fatalf("expected 2 messages on remaining target, got %d", got)
	}
}

func TestApplySurfaceMetaFillsTitles(t *testing.T) {
	topo := &fakeTopology{topo: schema.Topology{
		Workbenches:       []schema.Workbench{{ID: "t1", Basename: "/workspace/ws1", Views: []schema.View{{ID: "v1"}}}},
		ActiveWorkbenchID: "t1",
	}}
	s, _, _ := newSync(t, topo)
	views := []schema.View{
		{ID: "v1", Path: &schema.ViewLocation{Pathname: "/d1"}},
		{ID: "v2", Path: &schema.ViewLocation{Pathname: "/trash"}},
	}
	idx := 1
	resp, err := s.ApplySurfaceMeta(context.Background(), SurfaceMeta{TabID: "t1", Views: &views, ActiveViewIndex: &idx})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !resp.Changed {
		t.Fatalf("expected change")
	}
	wb, _ := resp.Topology.Find("t1")
	if wb.ActiveViewIndex != 1 || wb.Views[0].Title != "Roadmap" || wb.Views[1].Title != "Trash" {
		t.Fatalf("unexpected workbench %+v", wb)
	}
	if views[0].Title != "" {
		t.Fatalf("expected caller views untouched")
	}
	if _, err := s.ApplySurfaceMeta(context.Background(), SurfaceMeta{TabID: schema.ShellID}); err == nil {
		t.Fatalf("expected chrome id to be rejected")
	}
}

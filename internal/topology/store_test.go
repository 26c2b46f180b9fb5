package topology

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/persist"
	"pkt.systems/tabshell/schema"
)

type memBackend struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
	fail error
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string]json.RawMessage)}
}

func (m *memBackend) Load(key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[key]
	return raw, ok, nil
}

func (m *memBackend) Save(key string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.docs[key] = append(json.RawMessage(nil), raw...)
	return nil
}

func twoTabs() schema.Topology {
	return schema.Topology{
		Workbenches: []schema.Workbench{
			{ID: "t1", Basename: "/ws", Views: []schema.View{{ID: "v1"}}},
			{ID: "t2", Basename: "/ws", Views: []schema.View{{ID: "v2"}}},
		},
		ActiveWorkbenchID: "t1",
	}
}

func TestGetDefaultsOnMissingAndInvalid(t *testing.T) {
	backend := newMemBackend()
	store, err := NewStore(backend, "", nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if topo := store.Get(); len(topo.Workbenches) != 0 || topo.ActiveWorkbenchID != "" {
		t.Fatalf("expected default topology, got %+v", topo)
	}
	backend.docs[schema.DefaultStorageKey] = json.RawMessage(`{broken`)
	if topo := store.Get(); len(topo.Workbenches) != 0 {
		t.Fatalf("expected default topology for invalid document, got %+v", topo)
	}
}

func TestPatchThenGetReflectsMerge(t *testing.T) {
	store, err := NewStore(newMemBackend(), "", nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Set(twoTabs()); err != nil {
		t.Fatalf("set: %v", err)
	}
	active := schema.TabID("t2")
	if _, err := store.Patch(schema.TopologyPatch{ActiveWorkbenchID: &active}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	got := store.Get()
	if got.ActiveWorkbenchID != "t2" {
		t.Fatalf("expected active t2, got %q", got.ActiveWorkbenchID)
	}
	if len(got.Workbenches) != 2 || got.Workbenches[0].ID != "t1" {
		t.Fatalf("expected workbenches untouched, got %+v", got.Workbenches)
	}
}

func TestSubscribersSeeCommitsInOrder(t *testing.T) {
	bus := eventbus.New(nil)
	store, err := NewStore(newMemBackend(), "", bus, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var seen []schema.TabID
	cancel := store.Subscribe(func(topo schema.Topology) {
		seen = append(seen, topo.ActiveWorkbenchID)
	})
	defer cancel()

	if err := store.Set(twoTabs()); err != nil {
		t.Fatalf("set: %v", err)
	}
	for _, id := range []schema.TabID{"t2", "t1", "t2"} {
		active := id
		if _, err := store.Patch(schema.TopologyPatch{ActiveWorkbenchID: &active}); err != nil {
			t.Fatalf("patch: %v", err)
		}
	}
	want := []schema.TabID{"t1", "t2", "t1", "t2"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], seen[i])
		}
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	bus := eventbus.New(nil)
	store, err := NewStore(newMemBackend(), "", bus, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var inside schema.Topology
	store.Subscribe(func(schema.Topology) {
		inside = store.Get()
	})
	if err := store.Set(twoTabs()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(inside.Workbenches) != 2 {
		t.Fatalf("expected subscriber to read committed topology, got %+v", inside)
	}
}

func TestUpdateSkipsWriteWhenUnchanged(t *testing.T) {
	bus := eventbus.New(nil)
	store, err := NewStore(newMemBackend(), "", bus, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	events := 0
	store.Subscribe(func(schema.Topology) { events++ })
	_, changed, err := store.Update(func(topo schema.Topology) (schema.Topology, bool) {
		return topo, false
	})
	if err != nil || changed || events != 0 {
		t.Fatalf("expected no-op update, changed=%v events=%d err=%v", changed, events, err)
	}
}

func TestSaveFailureDoesNotPublish(t *testing.T) {
	bus := eventbus.New(nil)
	backend := newMemBackend()
	backend.fail = errors.New("disk full")
	store, err := NewStore(backend, "", bus, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	events := 0
	store.Subscribe(func(schema.Topology) { events++ })
	if err := store.Set(twoTabs()); err == nil {
		t.Fatalf("expected save error")
	}
	if events != 0 {
		t.Fatalf("expected no events on failed save, got %d", events)
	}
}

func TestStoreOverPersistRoundTrip(t *testing.T) {
	disk, err := persist.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	store, err := NewStore(disk, "", nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Set(twoTabs()); err != nil {
		t.Fatalf("set: %v", err)
	}
	again, err := NewStore(disk, "", nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := again.Get(); len(got.Workbenches) != 2 || got.ActiveWorkbenchID != "t1" {
		t.Fatalf("unexpected reloaded topology: %+v", got)
	}
}

func TestExternalChangeIgnoresOtherKeys(t *testing.T) {
	bus := eventbus.New(nil)
	store, err := NewStore(newMemBackend(), "", bus, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var got []schema.Topology
	store.Subscribe(func(topo schema.Topology) { got = append(got, topo) })
	store.ExternalChange("other", json.RawMessage(`{}`))
	raw, _ := json.Marshal(twoTabs())
	store.ExternalChange(schema.DefaultStorageKey, raw)
	if len(got) != 1 || len(got[0].Workbenches) != 2 {
		t.Fatalf("expected one external topology event, got %+v", got)
	}
}

// Package topology holds the persisted tab/view document and broadcasts its
// changes.
package topology

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/eventbus"
	"pkt.systems/tabshell/internal/persist"
	"pkt.systems/tabshell/schema"
)

// Backend is the document storage the topology lives in.
type Backend interface {
	Load(key string) (json.RawMessage, bool, error)
	Save(key string, raw json.RawMessage) error
}

// Store is the single source of truth for the topology.
type Store struct {
	mu      sync.Mutex
	backend Backend
	key     string
	bus     *eventbus.Bus
	log     pslog.Logger
}

// NewStore constructs a topology store over backend. Changes are published on bus.
func NewStore(backend Backend, key string, bus *eventbus.Bus, logger pslog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("topology backend is required")
	}
	if key == "" {
		key = schema.DefaultStorageKey
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{backend: backend, key: key, bus: bus, log: logger.With("key", key)}, nil
}

// Get returns the current topology. Missing or invalid documents yield the
// default topology.
func (s *Store) Get() schema.Topology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked()
}

func (s *Store) getLocked() schema.Topology {
	raw, ok, err := s.backend.Load(s.key)
	if err != nil {
		s.log.Warn("topology load failed", "err", err)
		return schema.DefaultTopology()
	}
	if !ok {
		return schema.DefaultTopology()
	}
	topo, err := schema.DecodeTopology(raw)
	if err != nil {
		s.log.Warn("topology invalid, using default", "err", err)
	}
	return topo
}

// Set replaces the topology.
func (s *Store) Set(topo schema.Topology) error {
	s.mu.Lock()
	err := s.setLocked(topo)
	s.mu.Unlock()
	s.bus.Flush()
	return err
}

// Patch shallow-merges patch over the current topology and persists the result.
func (s *Store) Patch(patch schema.TopologyPatch) (schema.Topology, error) {
	s.mu.Lock()
	next := patch.Apply(s.getLocked())
	err := s.setLocked(next)
	if err == nil {
		next = s.getLocked()
	}
	s.mu.Unlock()
	s.bus.Flush()
	return next, err
}

// Update runs fn on the current topology and persists its result when fn
// reports a change. fn runs under the store lock and must not block.
func (s *Store) Update(fn func(schema.Topology) (schema.Topology, bool)) (schema.Topology, bool, error) {
	s.mu.Lock()
	current := s.getLocked()
	next, changed := fn(current.Clone())
	if !changed {
		s.mu.Unlock()
		return current, false, nil
	}
	err := s.setLocked(next)
	if err == nil {
		next = s.getLocked()
	}
	s.mu.Unlock()
	s.bus.Flush()
	if err != nil {
		return current, false, err
	}
	return next, true, nil
}

func (s *Store) setLocked(topo schema.Topology) error {
	topo = schema.NormalizeTopology(topo)
	raw, err := json.Marshal(topo)
	if err != nil {
		return err
	}
	if err := s.backend.Save(s.key, raw); err != nil {
		s.log.Warn("topology save failed", "err", err)
		return err
	}
	s.log.Trace("topology saved", "workbenches", len(topo.Workbenches), "active", topo.ActiveWorkbenchID)
	s.bus.Enqueue(eventbus.Event{Type: eventbus.EventTopology, Topology: topo.Clone()})
	return nil
}

// ExternalChange publishes a document written by another process. It is
// meant to be used as the persist watch callback.
func (s *Store) ExternalChange(key string, raw json.RawMessage) {
	if key != s.key {
		return
	}
	topo, err := schema.DecodeTopology(raw)
	if err != nil {
		s.log.Warn("topology external change invalid, using default", "err", err)
	}
	s.log.Debug("topology external change", "workbenches", len(topo.Workbenches))
	s.mu.Lock()
	s.bus.Enqueue(eventbus.Event{Type: eventbus.EventTopology, Topology: topo})
	s.mu.Unlock()
	s.bus.Flush()
}

// Watch follows external writers of the persisted document until ctx ends.
func (s *Store) Watch(ctx context.Context, store *persist.Store) error {
	return store.Watch(ctx, s.ExternalChange)
}

// Subscribe registers a synchronous topology listener.
func (s *Store) Subscribe(fn func(schema.Topology)) func() {
	return s.bus.SubscribeFunc(func(ev eventbus.Event) {
		if ev.Type == eventbus.EventTopology {
			fn(ev.Topology)
		}
	})
}

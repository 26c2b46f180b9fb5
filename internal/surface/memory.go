package surface

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"pkt.systems/tabshell/schema"
)

// MemoryFactory is an in-process backend. It records every call so the
// orchestrator can run headless and be inspected.
type MemoryFactory struct {
	mu       sync.Mutex
	jar      map[string]schema.Cookie
	surfaces map[schema.TabID][]*MemorySurface
	created  int
	zorder   int
	// Gate, when set, is called before Create returns and may block.
	Gate func(ctx context.Context, spec Spec) error
}

// NewMemoryFactory constructs an empty in-memory backend.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		jar:      make(map[string]schema.Cookie),
		surfaces: make(map[schema.TabID][]*MemorySurface),
	}
}

// Create builds a surface after the optional gate releases.
func (f *MemoryFactory) Create(ctx context.Context, spec Spec) (Surface, error) {
	f.mu.Lock()
	gate := f.Gate
	f.mu.Unlock()
	if gate != nil {
		if err := gate(ctx, spec); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &MemorySurface{factory: f, id: spec.ID, kind: spec.Kind, args: append([]string(nil), spec.Args...)}
	f.mu.Lock()
	f.created++
	f.surfaces[spec.ID] = append(f.surfaces[spec.ID], s)
	f.mu.Unlock()
	return s, nil
}

// SetGate replaces the construction gate.
func (f *MemoryFactory) SetGate(gate func(ctx context.Context, spec Spec) error) {
	f.mu.Lock()
	f.Gate = gate
	f.mu.Unlock()
}

// Created reports how many surfaces were constructed in total.
func (f *MemoryFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Surfaces returns every surface ever created for id, oldest first.
func (f *MemoryFactory) Surfaces(id schema.TabID) []*MemorySurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MemorySurface(nil), f.surfaces[id]...)
}

// Latest returns the newest surface created for id.
func (f *MemoryFactory) Latest(id schema.TabID) *MemorySurface {
	all := f.Surfaces(id)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Close is a no-op for the memory backend.
func (f *MemoryFactory) Close() error {
	return nil
}

func cookieKey(c schema.Cookie) string {
	return cookieHost(c.URL, c.Domain) + "|" + c.Path + "|" + c.Name
}

func cookieHost(rawURL, domain string) string {
	if domain != "" {
		return strings.TrimPrefix(domain, ".")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// MemorySurface is a surface of the memory backend.
type MemorySurface struct {
	factory *MemoryFactory
	id      schema.TabID
	kind    Kind
	args    []string

	mu          sync.Mutex
	url         string
	loads       int
	reloads     int
	bounds      schema.Rect
	boundsCalls int
	visible     bool
	z           int
	closed      bool
}

func (s *MemorySurface) ID() schema.TabID { return s.id }
func (s *MemorySurface) Kind() Kind       { return s.kind }

// Args returns the construction arguments.
func (s *MemorySurface) Args() []string {
	return append([]string(nil), s.args...)
}

func (s *MemorySurface) Load(_ context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("load %s: %w", s.id, schema.ErrViewDestroyed)
	}
	s.url = target
	s.loads++
	return nil
}

func (s *MemorySurface) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("reload %s: %w", s.id, schema.ErrViewDestroyed)
	}
	s.reloads++
	return nil
}

func (s *MemorySurface) SetBounds(_ context.Context, rect schema.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = rect
	s.boundsCalls++
	return nil
}

func (s *MemorySurface) SetVisible(_ context.Context, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
	return nil
}

func (s *MemorySurface) Raise(context.Context) error {
	s.factory.mu.Lock()
	s.factory.zorder++
	z := s.factory.zorder
	s.factory.mu.Unlock()
	s.mu.Lock()
	s.z = z
	s.mu.Unlock()
	return nil
}

func (s *MemorySurface) SetCookie(_ context.Context, cookie schema.Cookie) error {
	if err := cookie.Validate(); err != nil {
		return err
	}
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	s.factory.jar[cookieKey(cookie)] = cookie
	return nil
}

func (s *MemorySurface) RemoveCookie(_ context.Context, rawURL, name string) error {
	host := cookieHost(rawURL, "")
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	for key, c := range s.factory.jar {
		if c.Name == name && cookieHost(c.URL, c.Domain) == host {
			delete(s.factory.jar, key)
		}
	}
	return nil
}

func (s *MemorySurface) Cookies(_ context.Context, rawURL, name string) ([]schema.Cookie, error) {
	host := ""
	if rawURL != "" {
		host = cookieHost(rawURL, "")
	}
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	out := make([]schema.Cookie, 0, len(s.factory.jar))
	for _, c := range s.factory.jar {
		if !c.Matches(name) {
			continue
		}
		if host != "" && cookieHost(c.URL, c.Domain) != host {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MemorySurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.visible = false
	return nil
}

// MemoryState is a snapshot of a memory surface.
type MemoryState struct {
	URL         string
	Loads       int
	Reloads     int
	Bounds      schema.Rect
	BoundsCalls int
	Visible     bool
	Z           int
	Closed      bool
}

// State returns a snapshot of the recorded calls.
func (s *MemorySurface) State() MemoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MemoryState{
		URL:         s.url,
		Loads:       s.loads,
		Reloads:     s.reloads,
		Bounds:      s.bounds,
		BoundsCalls: s.boundsCalls,
		Visible:     s.visible,
		Z:           s.z,
		Closed:      s.closed,
	}
}

package surface

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/tabshell/schema"
)

func TestMemoryFactoryRecordsCalls(t *testing.T) {
	f := NewMemoryFactory()
	ctx := context.Background()
	s, err := f.Create(ctx, Spec{ID: "app-1", Kind: KindContent, Args: []string{"--view-id=app-1"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Load(ctx, "http://x/ws/all"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.SetBounds(ctx, schema.Rect{Y: 52, Width: 800, Height: 548}); err != nil {
		t.Fatalf("bounds: %v", err)
	}
	_ = s.SetVisible(ctx, true)
	_ = s.Raise(ctx)

	state := f.Latest("app-1").State()
	if state.URL != "http://x/ws/all" || state.Loads != 1 {
		t.Fatalf("unexpected load state: %+v", state)
	}
	if state.Bounds.Height != 548 || state.BoundsCalls != 1 || !state.Visible || state.Z != 1 {
		t.Fatalf("unexpected layout state: %+v", state)
	}

	_ = s.Close()
	if err := s.Load(ctx, "http://x"); !errors.Is(err, schema.ErrViewDestroyed) {
		t.Fatalf("expected ErrViewDestroyed after close, got %v", err)
	}
}

func TestMemoryCookiesAreShared(t *testing.T) {
	f := NewMemoryFactory()
	ctx := context.Background()
	a, _ := f.Create(ctx, Spec{ID: "a", Kind: KindContent})
	b, _ := f.Create(ctx, Spec{ID: "b", Kind: KindContent})

	if err := a.SetCookie(ctx, schema.Cookie{URL: "https://app.example.com", Name: "sid", Value: "1"}); err != nil {
		t.Fatalf("set cookie: %v", err)
	}
	got, err := b.Cookies(ctx, "https://app.example.com/path", "sid")
	if err != nil || len(got) != 1 || got[0].Value != "1" {
		t.Fatalf("expected shared cookie, got %+v err=%v", got, err)
	}
	if err := b.RemoveCookie(ctx, "https://app.example.com", "sid"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = a.Cookies(ctx, "", "")
	if len(got) != 0 {
		t.Fatalf("expected cookie removed, got %+v", got)
	}
}

func TestMemoryGateCanFailCreate(t *testing.T) {
	f := NewMemoryFactory()
	boom := errors.New("boom")
	f.SetGate(func(context.Context, Spec) error { return boom })
	if _, err := f.Create(context.Background(), Spec{ID: "a"}); !errors.Is(err, boom) {
		t.Fatalf("expected gate error, got %v", err)
	}
	if f.Created() != 0 {
		t.Fatalf("expected no surface created")
	}
}

// Package surface abstracts the native rendering surfaces that back the
// chrome strip and every tab.
package surface

import (
	"context"

	"pkt.systems/tabshell/schema"
)

// Kind distinguishes the chrome surface from tab content surfaces.
type Kind string

const (
	// KindChrome is the persistent top strip.
	KindChrome Kind = "chrome"
	// KindContent renders one tab.
	KindContent Kind = "content"
)

// KindFor returns the surface kind used for id.
func KindFor(id schema.TabID) Kind {
	if id.IsShell() {
		return KindChrome
	}
	return KindContent
}

// Spec describes a surface to construct.
type Spec struct {
	ID   schema.TabID
	Kind Kind
	// Args are passed to the surface at construction, e.g. --view-id.
	Args []string
}

// Surface is one live rendering surface. All surfaces created by the same
// Factory share one cookie session.
type Surface interface {
	ID() schema.TabID
	Kind() Kind
	Load(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	SetBounds(ctx context.Context, rect schema.Rect) error
	SetVisible(ctx context.Context, visible bool) error
	// Raise moves the surface to the top of the z-order.
	Raise(ctx context.Context) error
	SetCookie(ctx context.Context, cookie schema.Cookie) error
	RemoveCookie(ctx context.Context, url, name string) error
	Cookies(ctx context.Context, url, name string) ([]schema.Cookie, error)
	Close() error
}

// Factory constructs surfaces. Create may block while the surface starts.
type Factory interface {
	Create(ctx context.Context, spec Spec) (Surface, error)
	Close() error
}

// Package cdp backs surfaces with browser targets driven over the Chrome
// DevTools Protocol. All targets live in one browser and share its cookie
// store.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/surface"
	"pkt.systems/tabshell/schema"
)

// Options configures the browser process.
type Options struct {
	Headless  bool
	ExecPath  string
	NoSandbox bool
	Logger    pslog.Logger
}

// Factory starts one browser and opens a target per surface.
type Factory struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	log           pslog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFactory launches the browser.
func NewFactory(ctx context.Context, opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
	)
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Trace("cdp browser log", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn("cdp browser error", "msg", fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Info("cdp browser started", "headless", opts.Headless)
	return &Factory{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		log:           logger,
	}, nil
}

// Create opens a new target. Construction arguments are exposed to the page
// as window.__tabshell before any script runs.
func (f *Factory) Create(ctx context.Context, spec surface.Spec) (surface.Surface, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, errors.New("cdp factory closed")
	}
	meta, err := json.Marshal(map[string]any{"viewId": spec.ID, "kind": spec.Kind, "args": spec.Args})
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	script := "window.__tabshell = " + string(meta) + ";"
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}()
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open target %s: %w", spec.ID, err)
	}
	f.log.Debug("cdp target opened", "id", spec.ID, "kind", spec.Kind, "elapsed", time.Since(start))
	return &Surface{id: spec.ID, kind: spec.Kind, ctx: tabCtx, cancel: cancel, log: f.log}, nil
}

// Close shuts the browser down.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	err := chromedp.Cancel(f.browserCtx)
	f.browserCancel()
	f.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Surface is one browser target.
type Surface struct {
	id     schema.TabID
	kind   surface.Kind
	ctx    context.Context
	cancel context.CancelFunc
	log    pslog.Logger

	mu     sync.Mutex
	bounds schema.Rect
}

func (s *Surface) ID() schema.TabID   { return s.id }
func (s *Surface) Kind() surface.Kind { return s.kind }

func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", s.id, schema.ErrViewDestroyed)
	}
	return chromedp.Run(s.ctx, actions...)
}

func (s *Surface) Load(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Surface) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload())
}

// SetBounds sizes the target viewport. Targets have no position of their own,
// so only width and height take effect.
func (s *Surface) SetBounds(ctx context.Context, rect schema.Rect) error {
	s.mu.Lock()
	s.bounds = rect
	s.mu.Unlock()
	if rect.Empty() {
		return nil
	}
	return s.run(ctx, emulation.SetDeviceMetricsOverride(int64(rect.Width), int64(rect.Height), 1, false))
}

// SetVisible freezes hidden targets and resumes visible ones.
func (s *Surface) SetVisible(ctx context.Context, visible bool) error {
	state := page.SetWebLifecycleStateStateFrozen
	if visible {
		state = page.SetWebLifecycleStateStateActive
	}
	return s.run(ctx, page.SetWebLifecycleState(state))
}

func (s *Surface) Raise(ctx context.Context) error {
	return s.run(ctx, page.BringToFront())
}

func (s *Surface) SetCookie(ctx context.Context, c schema.Cookie) error {
	if err := c.Validate(); err != nil {
		return err
	}
	params := network.SetCookie(c.Name, c.Value).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if c.URL != "" {
		params = params.WithURL(c.URL)
	}
	if c.Domain != "" {
		params = params.WithDomain(c.Domain)
	}
	if c.Path != "" {
		params = params.WithPath(c.Path)
	}
	if c.Expires != nil {
		exp := cdp.TimeSinceEpoch(*c.Expires)
		params = params.WithExpires(&exp)
	}
	switch c.SameSite {
	case "lax":
		params = params.WithSameSite(network.CookieSameSiteLax)
	case "strict":
		params = params.WithSameSite(network.CookieSameSiteStrict)
	case "no_restriction":
		params = params.WithSameSite(network.CookieSameSiteNone)
	}
	return s.run(ctx, params)
}

func (s *Surface) RemoveCookie(ctx context.Context, url, name string) error {
	return s.run(ctx, network.DeleteCookies(name).WithURL(url))
}

func (s *Surface) Cookies(ctx context.Context, url, name string) ([]schema.Cookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.GetCookies()
		if url != "" {
			params = params.WithURLs([]string{url})
		}
		var err error
		raw, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]schema.Cookie, 0, len(raw))
	for _, c := range raw {
		converted := fromNetworkCookie(c, url)
		if converted.Matches(name) {
			out = append(out, converted)
		}
	}
	return out, nil
}

func fromNetworkCookie(c *network.Cookie, url string) schema.Cookie {
	out := schema.Cookie{
		URL:      url,
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	switch c.SameSite {
	case network.CookieSameSiteLax:
		out.SameSite = "lax"
	case network.CookieSameSiteStrict:
		out.SameSite = "strict"
	case network.CookieSameSiteNone:
		out.SameSite = "no_restriction"
	}
	if c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		exp := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		out.Expires = &exp
	}
	return out
}

// Close closes the target.
func (s *Surface) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("cdp target close failed", "id", s.id, "err", err)
		return err
	}
	return nil
}

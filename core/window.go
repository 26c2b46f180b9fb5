package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pkt.systems/tabshell/internal/viewregistry"
	"pkt.systems/tabshell/schema"
)

func (s *service) Resize(ctx context.Context, req schema.ResizeRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	if req.Window.Width < 0 || req.Window.Height < 0 {
		return schema.ActionResponse{}, schema.ErrInvalidRequest
	}
	s.layout.Resize(ctx, req.Window)
	return schema.ActionResponse{Topology: s.store.Get()}, nil
}

func (s *service) UpdateTabsBoundingRect(ctx context.Context, req schema.UpdateTabsBoundingRectRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	if req.Rect.Width < 0 || req.Rect.Height < 0 {
		return schema.ActionResponse{}, schema.ErrInvalidRequest
	}
	s.layout.SetChromeBounds(ctx, req.Rect)
	return schema.ActionResponse{Topology: s.store.Get()}, nil
}

func (s *service) SetWindowState(ctx context.Context, req schema.WindowStateRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	if s.sink != nil {
		if req.Maximized != nil {
			s.sink.OnMaximized(*req.Maximized)
		}
		if req.FullScreen != nil {
			s.sink.OnFullScreen(*req.FullScreen)
		}
	}
	return schema.ActionResponse{Topology: s.store.Get()}, nil
}

// handles returns the live surfaces in id order, chrome last.
func (s *service) handles() []*viewregistry.Handle {
	all := s.registry.List()
	out := make([]*viewregistry.Handle, 0, len(all))
	for _, h := range all {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.IsShell() != out[j].ID.IsShell() {
			return !out[i].ID.IsShell()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *service) SetCookie(ctx context.Context, req schema.SetCookieRequest) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	var cookie schema.Cookie
	if req.Cookie != nil {
		cookie = *req.Cookie
	} else {
		parsed, err := schema.ParseCookie(req.Origin, req.Raw)
		if err != nil {
			return err
		}
		cookie = parsed
	}
	if err := cookie.Validate(); err != nil {
		return err
	}
	handles := s.handles()
	if len(handles) == 0 {
		return schema.ErrNoSurface
	}
	var errs []error
	for _, h := range handles {
		if err := h.Surface.SetCookie(ctx, cookie); err != nil {
			errs = append(errs, fmt.Errorf("set cookie on %s: %w", h.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("service cookie set failed", "name", cookie.Name, "err", err)
		return err
	}
	s.logger.Debug("service cookie set", "name", cookie.Name, "surfaces", len(handles))
	return nil
}

func (s *service) RemoveCookie(ctx context.Context, req schema.RemoveCookieRequest) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if req.URL == "" || req.Name == "" {
		return schema.ErrInvalidCookie
	}
	handles := s.handles()
	if len(handles) == 0 {
		return schema.ErrNoSurface
	}
	var errs []error
	for _, h := range handles {
		if err := h.Surface.RemoveCookie(ctx, req.URL, req.Name); err != nil {
			errs = append(errs, fmt.Errorf("remove cookie on %s: %w", h.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("service cookie remove failed", "name", req.Name, "err", err)
		return err
	}
	s.logger.Debug("service cookie removed", "name", req.Name, "surfaces", len(handles))
	return nil
}

// GetCookie reads from the first live surface; all surfaces share one session.
func (s *service) GetCookie(ctx context.Context, req schema.GetCookieRequest) (schema.GetCookieResponse, error) {
	if ctx == nil {
		return schema.GetCookieResponse{}, errors.New("missing context")
	}
	handles := s.handles()
	if len(handles) == 0 {
		return schema.GetCookieResponse{}, schema.ErrNoSurface
	}
	cookies, err := handles[0].Surface.Cookies(ctx, req.URL, req.Name)
	if err != nil {
		return schema.GetCookieResponse{}, err
	}
	return schema.GetCookieResponse{Cookies: cookies}, nil
}

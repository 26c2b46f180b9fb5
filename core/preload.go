package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"pkt.systems/tabshell/schema"
)

func (s *service) Preload(ctx context.Context) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if s.cfg.WindowWidth > 0 && s.cfg.WindowHeight > 0 {
		s.layout.Resize(ctx, schema.Rect{Width: s.cfg.WindowWidth, Height: s.cfg.WindowHeight})
	}
	if err := s.loadChrome(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("service chrome unavailable", "url", s.cfg.ShellURL, "err", err)
	}

	topo := s.store.Get()
	if len(topo.Workbenches) == 0 {
		s.logger.Info("service first launch, adding default tab")
		_, err := s.AddTab(ctx, schema.AddTabRequest{Template: &schema.WorkbenchTemplate{
			Basename: "/",
			Views:    []schema.View{{}},
		}})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("service default tab failed", "err", err)
		}
		return nil
	}

	active := topo.ActiveWorkbenchID
	if _, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: active}); err != nil {
		s.tabLog(ctx, active).Warn("service preload show failed", "err", err)
	}
	pending := make([]schema.TabID, 0, len(topo.Workbenches))
	for _, id := range topo.IDs() {
		if id != active {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	// One load per interval; the initial token is spent so the first
	// background load also waits.
	limiter := rate.NewLimiter(rate.Every(s.cfg.PreloadDelay), 1)
	limiter.Allow()
	loaded := 0
	for _, id := range pending {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if s.store.Get().Index(id) == -1 {
			continue
		}
		if _, err := s.LoadTab(ctx, schema.LoadTabRequest{TabID: id}); err != nil {
			s.tabLog(ctx, id).Warn("service preload failed", "err", err)
			continue
		}
		loaded++
	}
	s.logger.Info("service preload complete", "tabs", loaded+1, "pending", len(pending))
	return nil
}

func (s *service) loadChrome(ctx context.Context) error {
	shell, err := s.registry.Ensure(ctx, schema.ShellID)
	if err != nil {
		return fmt.Errorf("create chrome surface: %w", err)
	}
	if err := shell.Surface.Load(ctx, s.cfg.ShellURL); err != nil {
		return fmt.Errorf("load chrome surface: %w", err)
	}
	s.logger.Info("service chrome loaded", "url", s.cfg.ShellURL)
	return nil
}

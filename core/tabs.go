package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/tabshell/schema"
)

func (s *service) AddTab(ctx context.Context, req schema.AddTabRequest) (schema.AddTabResponse, error) {
	if ctx == nil {
		return schema.AddTabResponse{}, errors.New("missing context")
	}
	var created schema.Workbench
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		tmpl, ok := addTemplate(cur, req.Template)
		if !ok {
			return cur, false
		}
		created = newWorkbench(tmpl)
		cur.Workbenches = append(cur.Workbenches, created)
		cur.ActiveWorkbenchID = created.ID
		return cur, true
	})
	if err != nil {
		s.logger.Warn("service tab add failed", "err", err)
		return schema.AddTabResponse{}, err
	}
	s.record("add-tab", changed)
	if !changed {
		s.logger.Debug("service tab add skipped", "reason", "no template")
		return schema.AddTabResponse{}, nil
	}
	if wb, ok := topo.Find(created.ID); ok {
		created = wb
	}
	log := s.tabLog(ctx, created.ID)
	log.Info("service tab added", "tabs", len(topo.Workbenches), "views", len(created.Views))
	if _, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: created.ID}); err != nil {
		log.Warn("service tab show failed", "err", err)
	}
	s.emit(schema.AddTabAction(created))
	return schema.AddTabResponse{Tab: created, Changed: true}, nil
}

// addTemplate returns the shape of a new tab. Without an explicit template the
// active workbench's basename and first view are used.
func addTemplate(topo schema.Topology, tmpl *schema.WorkbenchTemplate) (schema.WorkbenchTemplate, bool) {
	if tmpl != nil {
		return *tmpl, true
	}
	active, ok := topo.Active()
	if !ok || len(active.Views) == 0 {
		return schema.WorkbenchTemplate{}, false
	}
	first := active.Clone().Views[0]
	return schema.WorkbenchTemplate{Basename: active.Basename, Views: []schema.View{first}}, true
}

// newWorkbench materializes a template with fresh tab and view ids. New tabs
// are never pinned.
func newWorkbench(tmpl schema.WorkbenchTemplate) schema.Workbench {
	wb := schema.Workbench{
		ID:              newTabID(),
		Basename:        tmpl.Basename,
		ActiveViewIndex: tmpl.ActiveViewIndex,
	}
	views := schema.Workbench{Views: tmpl.Views}.Clone().Views
	for i := range views {
		views[i].ID = newViewID()
	}
	if len(views) == 0 {
		views = []schema.View{{ID: newViewID()}}
	}
	wb.Views = views
	return schema.NormalizeWorkbench(wb)
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if ctx == nil {
		return schema.CloseTabResponse{}, errors.New("missing context")
	}
	var closed schema.TabID
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		id := resolveTab(cur, req.TabID)
		idx := cur.Index(id)
		if idx == -1 || len(cur.Workbenches) <= 1 {
			return cur, false
		}
		cur.Workbenches = append(cur.Workbenches[:idx], cur.Workbenches[idx+1:]...)
		if cur.ActiveWorkbenchID == id {
			if idx < len(cur.Workbenches) {
				cur.ActiveWorkbenchID = cur.Workbenches[idx].ID
			} else {
				cur.ActiveWorkbenchID = cur.Workbenches[len(cur.Workbenches)-1].ID
			}
		}
		closed = id
		return cur, true
	})
	if err != nil {
		s.logger.Warn("service tab close failed", "err", err)
		return schema.CloseTabResponse{}, err
	}
	s.record("close-tab", changed)
	if !changed {
		s.logger.Debug("service tab close skipped", "tab", req.TabID, "tabs", len(topo.Workbenches))
		return schema.CloseTabResponse{Active: topo.ActiveWorkbenchID}, nil
	}
	s.registry.Destroy(closed)
	s.forget(closed)
	s.tabLog(ctx, closed).Info("service tab closed", "active", topo.ActiveWorkbenchID, "tabs", len(topo.Workbenches))
	s.emit(schema.CloseTabAction(closed))
	if _, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: topo.ActiveWorkbenchID}); err != nil {
		s.logger.Warn("service tab show failed", "tab", topo.ActiveWorkbenchID, "err", err)
	}
	return schema.CloseTabResponse{Closed: closed, Active: topo.ActiveWorkbenchID, Changed: true}, nil
}

func (s *service) CloseOtherTabs(ctx context.Context, req schema.CloseOtherTabsRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	var closed []schema.TabID
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		id := resolveTab(cur, req.TabID)
		if cur.Index(id) == -1 {
			return cur, false
		}
		kept := make([]schema.Workbench, 0, len(cur.Workbenches))
		for _, wb := range cur.Workbenches {
			if wb.ID == id || wb.Pinned {
				kept = append(kept, wb)
				continue
			}
			closed = append(closed, wb.ID)
		}
		if len(closed) == 0 {
			return cur, false
		}
		cur.Workbenches = kept
		if cur.Index(cur.ActiveWorkbenchID) == -1 {
			cur.ActiveWorkbenchID = id
		}
		return cur, true
	})
	if err != nil {
		s.logger.Warn("service close other tabs failed", "err", err)
		return schema.ActionResponse{}, err
	}
	s.record("close-other-tabs", changed)
	if !changed {
		return schema.ActionResponse{Topology: topo}, nil
	}
	for _, id := range closed {
		s.registry.Destroy(id)
		s.forget(id)
		s.emit(schema.CloseTabAction(id))
	}
	s.tabLog(ctx, req.TabID).Info("service other tabs closed", "closed", len(closed), "tabs", len(topo.Workbenches))
	if _, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: topo.ActiveWorkbenchID}); err != nil {
		s.logger.Warn("service tab show failed", "tab", topo.ActiveWorkbenchID, "err", err)
	}
	return schema.ActionResponse{Topology: s.store.Get(), Changed: true}, nil
}

func (s *service) DuplicateTab(ctx context.Context, req schema.DuplicateTabRequest) (schema.AddTabResponse, error) {
	if ctx == nil {
		return schema.AddTabResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	wb, ok := topo.Find(resolveTab(topo, req.TabID))
	if !ok {
		return schema.AddTabResponse{}, nil
	}
	tmpl := wb.Template()
	tmpl.Pinned = false
	return s.AddTab(ctx, schema.AddTabRequest{Template: &tmpl})
}

func (s *service) PinTab(ctx context.Context, req schema.PinTabRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	found := false
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		idx := cur.Index(req.TabID)
		if idx == -1 {
			return cur, false
		}
		found = true
		if cur.Workbenches[idx].Pinned == req.ShouldPin {
			return cur, false
		}
		cur.Workbenches = repin(cur.Workbenches, idx, req.ShouldPin)
		return cur, true
	})
	if err != nil {
		s.logger.Warn("service tab pin failed", "tab", req.TabID, "err", err)
		return schema.ActionResponse{}, err
	}
	s.record("pin-tab", changed)
	if !found {
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.tabLog(ctx, req.TabID).Info("service tab pinned", "pinned", req.ShouldPin, "changed", changed)
	s.emit(schema.PinTabAction(req.TabID, req.ShouldPin))
	return schema.ActionResponse{Topology: topo, Changed: changed}, nil
}

// repin moves the workbench at idx to the end of the pinned prefix when
// pinning, or to the start of the unpinned suffix when unpinning.
func repin(in []schema.Workbench, idx int, pinned bool) []schema.Workbench {
	target := in[idx]
	target.Pinned = pinned
	rest := make([]schema.Workbench, 0, len(in)-1)
	rest = append(rest, in[:idx]...)
	rest = append(rest, in[idx+1:]...)
	head, tail := schema.SplitPinned(rest)
	out := make([]schema.Workbench, 0, len(in))
	out = append(out, head...)
	out = append(out, target)
	return append(out, tail...)
}

func (s *service) ShowTab(ctx context.Context, req schema.ShowTabRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	var id schema.TabID
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		id = resolveTab(cur, req.TabID)
		if cur.Index(id) == -1 || cur.ActiveWorkbenchID == id {
			return cur, false
		}
		cur.ActiveWorkbenchID = id
		return cur, true
	})
	if err != nil {
		return schema.ActionResponse{}, err
	}
	if topo.Index(id) == -1 {
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.layout.Want(id)
	if _, err := s.LoadTab(ctx, schema.LoadTabRequest{TabID: id}); err != nil {
		s.tabLog(ctx, id).Warn("service tab load failed", "err", err)
	}
	topo = s.store.Get()
	if topo.ActiveWorkbenchID == id {
		s.layout.BringToFront(ctx, id)
	}
	s.tabLog(ctx, id).Debug("service tab shown", "activated", changed)
	return schema.ActionResponse{Topology: topo, Changed: changed}, nil
}

func (s *service) LoadTab(ctx context.Context, req schema.LoadTabRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	id := resolveTab(topo, req.TabID)
	if topo.Index(id) == -1 {
		return schema.ActionResponse{Topology: topo}, nil
	}
	log := s.tabLog(ctx, id)
	handle, err := s.registry.Ensure(ctx, id)
	if err != nil {
		if errors.Is(err, schema.ErrViewDestroyed) {
			log.Debug("service tab closed while loading")
			return schema.ActionResponse{Topology: s.store.Get()}, nil
		}
		return schema.ActionResponse{Topology: topo}, err
	}
	// Ensure may have suspended; the tab can be gone by now.
	topo = s.store.Get()
	wb, ok := topo.Find(id)
	if !ok {
		log.Debug("service tab closed while loading, destroying surface")
		s.registry.Destroy(id)
		s.forget(id)
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.mu.Lock()
	if s.loaded[id] == handle {
		s.mu.Unlock()
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.loaded[id] = handle
	s.mu.Unlock()

	target := s.viewURL(wb)
	if err := handle.Surface.Load(ctx, target); err != nil {
		s.mu.Lock()
		if s.loaded[id] == handle {
			delete(s.loaded, id)
		}
		s.mu.Unlock()
		return schema.ActionResponse{Topology: topo}, fmt.Errorf("load tab %s: %w", id, err)
	}
	log.Debug("service tab loaded", "url", target)
	return schema.ActionResponse{Topology: topo, Changed: true}, nil
}

func (s *service) RefreshTab(ctx context.Context, req schema.RefreshTabRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	id := resolveTab(topo, req.TabID)
	handle, ok := s.registry.Get(id)
	if !ok {
		return schema.ActionResponse{Topology: topo}, nil
	}
	if err := handle.Surface.Reload(ctx); err != nil {
		s.tabLog(ctx, id).Warn("service tab refresh failed", "err", err)
		return schema.ActionResponse{Topology: topo}, err
	}
	s.tabLog(ctx, id).Info("service tab refreshed")
	s.record("refresh-tab", true)
	return schema.ActionResponse{Topology: topo, Changed: true}, nil
}

func (s *service) BringToFront(ctx context.Context, req schema.BringToFrontRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	id := resolveTab(topo, req.TabID)
	if id == "" || id.IsShell() {
		return schema.ActionResponse{Topology: topo}, nil
	}
	fronted := s.layout.BringToFront(ctx, id)
	return schema.ActionResponse{Topology: topo, Changed: fronted}, nil
}

package core

import (
	"context"
	"errors"
	"reflect"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/internal/logx"
	"pkt.systems/tabshell/schema"
)

func (s *service) ActivateView(ctx context.Context, req schema.ActivateViewRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	inBounds := false
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		idx := cur.Index(req.TabID)
		if idx == -1 {
			return cur, false
		}
		wb := &cur.Workbenches[idx]
		if req.ViewIndex < 0 || req.ViewIndex >= len(wb.Views) {
			return cur, false
		}
		inBounds = true
		if wb.ActiveViewIndex == req.ViewIndex {
			return cur, false
		}
		wb.ActiveViewIndex = req.ViewIndex
		return cur, true
	})
	if err != nil {
		return schema.ActionResponse{}, err
	}
	s.record("activate-view", changed)
	if !inBounds {
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.viewLog(ctx, req.TabID, req.ViewIndex).Debug("service view activated", "changed", changed)
	s.emit(schema.ActivateViewAction(req.TabID, req.ViewIndex))
	return schema.ActionResponse{Topology: topo, Changed: changed}, nil
}

func (s *service) SeparateView(ctx context.Context, req schema.SeparateViewRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	log := s.viewLog(ctx, req.TabID, req.ViewIndex)
	var (
		found   bool
		moved   bool
		created schema.Workbench
	)
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		idx := cur.Index(req.TabID)
		if idx == -1 {
			return cur, false
		}
		src := &cur.Workbenches[idx]
		if req.ViewIndex < 0 || req.ViewIndex >= len(src.Views) {
			return cur, false
		}
		found = true
		if len(src.Views) == 1 {
			moved = true
			return cur, false
		}
		view := src.Views[req.ViewIndex]
		src.Views = append(src.Views[:req.ViewIndex], src.Views[req.ViewIndex+1:]...)
		if src.ActiveViewIndex > req.ViewIndex {
			src.ActiveViewIndex--
		}
		src.ActiveViewIndex = schema.ClampViewIndex(src.ActiveViewIndex, len(src.Views))
		created = schema.Workbench{
			ID:       newTabID(),
			Basename: src.Basename,
			Views:    []schema.View{view},
		}
		cur.Workbenches = append(cur.Workbenches, created)
		cur.ActiveWorkbenchID = created.ID
		return cur, true
	})
	if err != nil {
		log.Warn("service view separate failed", "err", err)
		return schema.ActionResponse{}, err
	}
	s.record("separate-view", changed)
	if !found {
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.emit(schema.SeparateViewAction(req.TabID, req.ViewIndex))
	if moved {
		// The only view cannot leave its workbench; the tab itself is shown instead.
		log.Info("service view separated as tab move")
		resp, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: req.TabID})
		if err != nil {
			return resp, err
		}
		return schema.ActionResponse{Topology: resp.Topology, Changed: resp.Changed}, nil
	}
	if wb, ok := topo.Find(created.ID); ok {
		created = wb
	}
	log.Info("service view separated", "new_tab", created.ID)
	if _, err := s.ShowTab(ctx, schema.ShowTabRequest{TabID: created.ID}); err != nil {
		log.Warn("service tab show failed", "tab", created.ID, "err", err)
	}
	s.emit(schema.AddTabAction(created))
	return schema.ActionResponse{Topology: s.store.Get(), Changed: true}, nil
}

func (s *service) OpenInSplitView(ctx context.Context, req schema.OpenInSplitViewRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	if topo.Index(req.TabID) == -1 {
		return schema.ActionResponse{Topology: topo}, nil
	}
	s.tabLog(ctx, req.TabID).Debug("service split view requested")
	s.record("open-in-split-view", false)
	s.emit(schema.OpenInSplitViewAction(req.TabID))
	return schema.ActionResponse{Topology: topo}, nil
}

func (s *service) UpdateWorkbenchMeta(ctx context.Context, req schema.UpdateWorkbenchMetaRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo, changed, err := s.store.Update(func(cur schema.Topology) (schema.Topology, bool) {
		idx := cur.Index(req.TabID)
		if idx == -1 {
			return cur, false
		}
		before := cur.Workbenches[idx]
		next := sanitizePatch(req.Patch).Apply(before)
		next.ID = before.ID
		next = schema.NormalizeWorkbench(next)
		if reflect.DeepEqual(before, next) {
			return cur, false
		}
		cur.Workbenches[idx] = next
		return cur, true
	})
	if err != nil {
		s.tabLog(ctx, req.TabID).Warn("service workbench meta update failed", "err", err)
		return schema.ActionResponse{}, err
	}
	s.record("update-workbench-meta", changed)
	if changed {
		s.tabLog(ctx, req.TabID).Trace("service workbench meta updated")
	}
	return schema.ActionResponse{Topology: topo, Changed: changed}, nil
}

// sanitizePatch drops a views field that would leave the workbench without
// any addressable view.
func sanitizePatch(p schema.WorkbenchPatch) schema.WorkbenchPatch {
	if p.Views == nil {
		return p
	}
	for _, v := range *p.Views {
		if v.ID != "" {
			return p
		}
	}
	p.Views = nil
	return p
}

func (s *service) ToggleRightSidebar(ctx context.Context, req schema.ToggleRightSidebarRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	id := resolveTab(topo, req.TabID)
	if topo.Index(id) == -1 {
		return schema.ActionResponse{Topology: topo}, nil
	}
	if s.sink != nil {
		s.sink.OnToggleRightSidebar(id)
	}
	return schema.ActionResponse{Topology: topo}, nil
}

func (s *service) viewLog(ctx context.Context, id schema.TabID, viewIndex int) pslog.Logger {
	return logx.WithTabView(s.logContext(ctx), id, viewIndex)
}

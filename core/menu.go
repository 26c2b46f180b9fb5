package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/tabshell/schema"
)

// tabMenu lists the context menu entries offered for a tab.
func tabMenu(topo schema.Topology, wb schema.Workbench) []schema.MenuItem {
	items := make([]schema.MenuItem, 0, 7)
	if wb.Pinned {
		items = append(items, schema.MenuItem{ID: schema.MenuUnpinTab, Label: "Unpin tab"})
	} else {
		items = append(items, schema.MenuItem{ID: schema.MenuPinTab, Label: "Pin tab"})
	}
	items = append(items,
		schema.MenuItem{ID: schema.MenuRefreshTab, Label: "Refresh tab"},
		schema.MenuItem{ID: schema.MenuDuplicateTab, Label: "Duplicate tab"},
	)
	if len(wb.Views) > 1 {
		items = append(items, schema.MenuItem{ID: schema.MenuSeparateView, Label: "Separate tabs", Separator: true})
	} else {
		items = append(items, schema.MenuItem{ID: schema.MenuOpenInSplitView, Label: "Open in split view", Separator: true})
	}
	_, unpinned := schema.SplitPinned(topo.Workbenches)
	if len(unpinned) > 1 {
		items = append(items,
			schema.MenuItem{ID: schema.MenuCloseTab, Label: "Close tab", Separator: true},
			schema.MenuItem{ID: schema.MenuCloseOtherTabs, Label: "Close other tabs"},
		)
	}
	return items
}

func (s *service) TabMenu(ctx context.Context, req schema.TabMenuRequest) (schema.TabMenuResponse, error) {
	if ctx == nil {
		return schema.TabMenuResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	wb, ok := topo.Find(req.TabID)
	if !ok {
		return schema.TabMenuResponse{}, nil
	}
	return schema.TabMenuResponse{Items: tabMenu(topo, wb)}, nil
}

func (s *service) RunMenuItem(ctx context.Context, req schema.RunMenuItemRequest) (schema.ActionResponse, error) {
	if ctx == nil {
		return schema.ActionResponse{}, errors.New("missing context")
	}
	topo := s.store.Get()
	wb, ok := topo.Find(req.TabID)
	if !ok {
		return schema.ActionResponse{Topology: topo}, nil
	}
	offered := false
	for _, item := range tabMenu(topo, wb) {
		if item.ID == req.Item {
			offered = true
			break
		}
	}
	if !offered {
		return schema.ActionResponse{Topology: topo}, fmt.Errorf("menu item %q: %w", req.Item, schema.ErrInvalidRequest)
	}
	s.viewLog(ctx, req.TabID, req.ViewIndex).Debug("service menu item selected", "item", req.Item)

	switch req.Item {
	case schema.MenuPinTab, schema.MenuUnpinTab:
		return s.PinTab(ctx, schema.PinTabRequest{TabID: req.TabID, ShouldPin: req.Item == schema.MenuPinTab})
	case schema.MenuRefreshTab:
		return s.RefreshTab(ctx, schema.RefreshTabRequest{TabID: req.TabID})
	case schema.MenuDuplicateTab:
		resp, err := s.DuplicateTab(ctx, schema.DuplicateTabRequest{TabID: req.TabID})
		return schema.ActionResponse{Topology: s.store.Get(), Changed: resp.Changed}, err
	case schema.MenuSeparateView:
		return s.SeparateView(ctx, schema.SeparateViewRequest{TabID: req.TabID, ViewIndex: req.ViewIndex})
	case schema.MenuOpenInSplitView:
		return s.OpenInSplitView(ctx, schema.OpenInSplitViewRequest{TabID: req.TabID})
	case schema.MenuCloseTab:
		resp, err := s.CloseTab(ctx, schema.CloseTabRequest{TabID: req.TabID})
		return schema.ActionResponse{Topology: s.store.Get(), Changed: resp.Changed}, err
	case schema.MenuCloseOtherTabs:
		return s.CloseOtherTabs(ctx, schema.CloseOtherTabsRequest{TabID: req.TabID})
	default:
		return schema.ActionResponse{Topology: topo}, schema.ErrInvalidRequest
	}
}

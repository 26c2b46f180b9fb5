package core

import (
	"context"

	"pkt.systems/tabshell/schema"
)

// Service is the transport-agnostic action protocol for tabs and views.
type Service interface {
	GetTopology(ctx context.Context) (schema.Topology, error)

	AddTab(ctx context.Context, req schema.AddTabRequest) (schema.AddTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	CloseOtherTabs(ctx context.Context, req schema.CloseOtherTabsRequest) (schema.ActionResponse, error)
	DuplicateTab(ctx context.Context, req schema.DuplicateTabRequest) (schema.AddTabResponse, error)
	PinTab(ctx context.Context, req schema.PinTabRequest) (schema.ActionResponse, error)
	ShowTab(ctx context.Context, req schema.ShowTabRequest) (schema.ActionResponse, error)
	LoadTab(ctx context.Context, req schema.LoadTabRequest) (schema.ActionResponse, error)
	RefreshTab(ctx context.Context, req schema.RefreshTabRequest) (schema.ActionResponse, error)
	BringToFront(ctx context.Context, req schema.BringToFrontRequest) (schema.ActionResponse, error)

	ActivateView(ctx context.Context, req schema.ActivateViewRequest) (schema.ActionResponse, error)
	SeparateView(ctx context.Context, req schema.SeparateViewRequest) (schema.ActionResponse, error)
	OpenInSplitView(ctx context.Context, req schema.OpenInSplitViewRequest) (schema.ActionResponse, error)
	UpdateWorkbenchMeta(ctx context.Context, req schema.UpdateWorkbenchMetaRequest) (schema.ActionResponse, error)
	ToggleRightSidebar(ctx context.Context, req schema.ToggleRightSidebarRequest) (schema.ActionResponse, error)

	TabMenu(ctx context.Context, req schema.TabMenuRequest) (schema.TabMenuResponse, error)
	RunMenuItem(ctx context.Context, req schema.RunMenuItemRequest) (schema.ActionResponse, error)

	Resize(ctx context.Context, req schema.ResizeRequest) (schema.ActionResponse, error)
	UpdateTabsBoundingRect(ctx context.Context, req schema.UpdateTabsBoundingRectRequest) (schema.ActionResponse, error)
	SetWindowState(ctx context.Context, req schema.WindowStateRequest) (schema.ActionResponse, error)

	SetCookie(ctx context.Context, req schema.SetCookieRequest) error
	RemoveCookie(ctx context.Context, req schema.RemoveCookieRequest) error
	GetCookie(ctx context.Context, req schema.GetCookieRequest) (schema.GetCookieResponse, error)

	// Preload creates the chrome surface and loads persisted tabs one at a
	// time, spaced by the configured delay.
	Preload(ctx context.Context) error
}

package schema

// Tab lifecycle.

// AddTabRequest describes a request to open a tab. A nil template clones the
// active workbench.
type AddTabRequest struct {
	Template *WorkbenchTemplate
}

// AddTabResponse reports the opened tab.
type AddTabResponse struct {
	Tab     Workbench `json:"tab"`
	Changed bool      `json:"changed"`
}

// CloseTabRequest describes a request to close a tab. An empty id means the active tab.
type CloseTabRequest struct {
	TabID TabID
}

// CloseTabResponse reports the closed tab and the tab that became active.
type CloseTabResponse struct {
	Closed  TabID `json:"closed"`
	Active  TabID `json:"active"`
	Changed bool  `json:"changed"`
}

// CloseOtherTabsRequest closes every unpinned tab except TabID.
type CloseOtherTabsRequest struct {
	TabID TabID
}

// DuplicateTabRequest opens a copy of a tab.
type DuplicateTabRequest struct {
	TabID TabID
}

// PinTabRequest describes a request to pin or unpin a tab.
type PinTabRequest struct {
	TabID     TabID
	ShouldPin bool
}

// ShowTabRequest activates a tab and makes it visible.
type ShowTabRequest struct {
	TabID TabID
}

// LoadTabRequest makes sure a tab's surface exists and is loaded.
type LoadTabRequest struct {
	TabID TabID
}

// RefreshTabRequest reloads a tab's surface.
type RefreshTabRequest struct {
	TabID TabID
}

// BringToFrontRequest makes a tab's surface the visible content surface.
type BringToFrontRequest struct {
	TabID TabID
}

// Views.

// ActivateViewRequest selects the active view in a tab.
type ActivateViewRequest struct {
	TabID     TabID
	ViewIndex int
}

// SeparateViewRequest moves a view into its own tab.
type SeparateViewRequest struct {
	TabID     TabID
	ViewIndex int
}

// OpenInSplitViewRequest asks the tab to open its active view beside itself.
type OpenInSplitViewRequest struct {
	TabID TabID
}

// UpdateWorkbenchMetaRequest merges a partial workbench into a tab.
type UpdateWorkbenchMetaRequest struct {
	TabID TabID
	Patch WorkbenchPatch
}

// ToggleRightSidebarRequest asks a tab to toggle its right sidebar.
type ToggleRightSidebarRequest struct {
	TabID TabID
}

// ActionResponse reports the topology after an action.
type ActionResponse struct {
	Topology Topology `json:"topology"`
	Changed  bool     `json:"changed"`
}

// Context menu.

// MenuItemID names a tab context menu entry.
type MenuItemID string

const (
	MenuPinTab          MenuItemID = "pin-tab"
	MenuUnpinTab        MenuItemID = "unpin-tab"
	MenuRefreshTab      MenuItemID = "refresh-tab"
	MenuDuplicateTab    MenuItemID = "duplicate-tab"
	MenuSeparateView    MenuItemID = "separate-view"
	MenuOpenInSplitView MenuItemID = "open-in-split-view"
	MenuCloseTab        MenuItemID = "close-tab"
	MenuCloseOtherTabs  MenuItemID = "close-other-tabs"
)

// MenuItem is one entry of the tab context menu.
type MenuItem struct {
	ID    MenuItemID `json:"id"`
	Label string     `json:"label"`
	// Separator marks the start of a new group.
	Separator bool `json:"separator,omitempty"`
}

// TabMenuRequest asks for the context menu of a tab.
type TabMenuRequest struct {
	TabID     TabID
	ViewIndex int
}

// TabMenuResponse lists the available menu entries.
type TabMenuResponse struct {
	Items []MenuItem `json:"items"`
}

// RunMenuItemRequest executes a context menu entry.
type RunMenuItemRequest struct {
	TabID     TabID
	ViewIndex int
	Item      MenuItemID
}

// Layout and window.

// ResizeRequest reports the host window content bounds.
type ResizeRequest struct {
	Window Rect
}

// UpdateTabsBoundingRectRequest sets explicit chrome bounds.
type UpdateTabsBoundingRectRequest struct {
	Rect Rect
}

// WindowStateRequest reports maximized/full-screen transitions.
type WindowStateRequest struct {
	Maximized  *bool
	FullScreen *bool
}

// Cookies.

// SetCookieRequest writes a cookie. Either Cookie or Origin+Raw is set.
type SetCookieRequest struct {
	Cookie *Cookie
	Origin string
	Raw    string
}

// RemoveCookieRequest deletes a cookie.
type RemoveCookieRequest struct {
	URL  string
	Name string
}

// GetCookieRequest reads cookies. Empty fields match everything.
type GetCookieRequest struct {
	URL  string
	Name string
}

// GetCookieResponse reports matching cookies.
type GetCookieResponse struct {
	Cookies []Cookie `json:"cookies"`
}

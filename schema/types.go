package schema

// TabID identifies a workbench (tab). ShellID is reserved for the chrome surface.
type TabID string

// ViewID identifies a view within its owning workbench.
type ViewID string

// ShellID is the reserved id of the persistent chrome surface.
const ShellID TabID = "shell"

// IsShell reports whether the id names the chrome surface.
func (id TabID) IsShell() bool {
	return id == ShellID
}

// Rect is a rectangle in host-window content coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

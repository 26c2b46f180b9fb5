package core

import "pkt.systems/tabshell/schema"

// EventSink receives action and window events from the core service.
type EventSink interface {
	OnTabAction(action schema.TabAction)
	OnToggleRightSidebar(id schema.TabID)
	OnMaximized(maximized bool)
	OnFullScreen(fullScreen bool)
}

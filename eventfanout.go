package tabshell

import (
	"pkt.systems/tabshell/core"
	"pkt.systems/tabshell/schema"
)

// eventFanout delivers core events to several sinks in order.
type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnTabAction(action schema.TabAction) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabAction(action)
	}
}

func (f eventFanout) OnToggleRightSidebar(id schema.TabID) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnToggleRightSidebar(id)
	}
}

func (f eventFanout) OnMaximized(maximized bool) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnMaximized(maximized)
	}
}

func (f eventFanout) OnFullScreen(fullScreen bool) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFullScreen(fullScreen)
	}
}

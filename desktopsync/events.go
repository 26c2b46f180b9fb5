// Package desktopsync mirrors orchestrator state to every host window and
// nested content surface, and folds navigation reported by content surfaces
// back into the topology.
package desktopsync

import (
	"encoding/json"
	"fmt"
	"sort"

	"pkt.systems/tabshell/internal/eventbus"
)

// Namespace groups the shell events on the wire.
const Namespace = "ui"

// Event keys within Namespace.
const (
	KeyMaximized           = "onMaximized"
	KeyFullScreen          = "onFullScreen"
	KeyTabViewsMetaChanged = "onTabViewsMetaChanged"
	KeyTabAction           = "onTabAction"
	KeyToggleRightSidebar  = "onToggleRightSidebar"
)

// Channel returns the wire channel of an event key.
func Channel(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// Message is one event as delivered to windows and surfaces.
type Message struct {
	Seq     uint64          `json:"seq"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

type registration struct {
	key    string
	encode func(eventbus.Event) any
}

// registrations maps bus events to their channel and payload.
var registrations = map[eventbus.EventType]registration{
	eventbus.EventTopology: {
		key:    KeyTabViewsMetaChanged,
		encode: func(ev eventbus.Event) any { return ev.Topology },
	},
	eventbus.EventTabAction: {
		key:    KeyTabAction,
		encode: func(ev eventbus.Event) any { return ev.Action },
	},
	eventbus.EventToggleRightSidebar: {
		key:    KeyToggleRightSidebar,
		encode: func(ev eventbus.Event) any { return ev.TabID },
	},
	eventbus.EventMaximized: {
		key:    KeyMaximized,
		encode: func(ev eventbus.Event) any { return ev.Flag },
	},
	eventbus.EventFullScreen: {
		key:    KeyFullScreen,
		encode: func(ev eventbus.Event) any { return ev.Flag },
	},
}

// Channels lists every channel a client can listen on.
func Channels() []string {
	out := make([]string, 0, len(registrations))
	for _, reg := range registrations {
		out = append(out, Channel(Namespace, reg.key))
	}
	sort.Strings(out)
	return out
}

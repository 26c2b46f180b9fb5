package schema

// TabActionType names a tab action.
type TabActionType string

const (
	// ActionAddTab is emitted after a tab is opened.
	ActionAddTab TabActionType = "add-tab"
	// ActionCloseTab is emitted after a tab is closed.
	ActionCloseTab TabActionType = "close-tab"
	// ActionPinTab is emitted when a tab is pinned or unpinned.
	ActionPinTab TabActionType = "pin-tab"
	// ActionActivateView is emitted when a view inside a tab is activated.
	ActionActivateView TabActionType = "activate-view"
	// ActionSeparateView is emitted when a view is moved into its own tab.
	ActionSeparateView TabActionType = "separate-view"
	// ActionOpenInSplitView asks the tab's owner to open its active view beside itself.
	ActionOpenInSplitView TabActionType = "open-in-split-view"
)

// TabAction is an observable record of a state change. It is not authoritative.
type TabAction struct {
	Type    TabActionType `json:"type"`
	Payload any           `json:"payload,omitempty"`
}

// PinTabPayload is the payload of a pin-tab action.
type PinTabPayload struct {
	Key       TabID `json:"key"`
	ShouldPin bool  `json:"shouldPin"`
}

// ViewIndexPayload is the payload of activate-view and separate-view actions.
type ViewIndexPayload struct {
	TabID     TabID `json:"tabId"`
	ViewIndex int   `json:"viewIndex"`
}

// TabIDPayload is the payload of open-in-split-view actions.
type TabIDPayload struct {
	TabID TabID `json:"tabId"`
}

// AddTabAction builds an add-tab action for the new workbench.
func AddTabAction(wb Workbench) TabAction {
	return TabAction{Type: ActionAddTab, Payload: wb.Clone()}
}

// CloseTabAction builds a close-tab action.
func CloseTabAction(id TabID) TabAction {
	return TabAction{Type: ActionCloseTab, Payload: id}
}

// PinTabAction builds a pin-tab action.
func PinTabAction(id TabID, shouldPin bool) TabAction {
	return TabAction{Type: ActionPinTab, Payload: PinTabPayload{Key: id, ShouldPin: shouldPin}}
}

// ActivateViewAction builds an activate-view action.
func ActivateViewAction(id TabID, viewIndex int) TabAction {
	return TabAction{Type: ActionActivateView, Payload: ViewIndexPayload{TabID: id, ViewIndex: viewIndex}}
}

// SeparateViewAction builds a separate-view action.
func SeparateViewAction(id TabID, viewIndex int) TabAction {
	return TabAction{Type: ActionSeparateView, Payload: ViewIndexPayload{TabID: id, ViewIndex: viewIndex}}
}

// OpenInSplitViewAction builds an open-in-split-view action.
func OpenInSplitViewAction(id TabID) TabAction {
	return TabAction{Type: ActionOpenInSplitView, Payload: TabIDPayload{TabID: id}}
}

// Target returns the tab the action concerns.
func (a TabAction) Target() TabID {
	switch p := a.Payload.(type) {
	case Workbench:
		return p.ID
	case TabID:
		return p
	case PinTabPayload:
		return p.Key
	case ViewIndexPayload:
		return p.TabID
	case TabIDPayload:
		return p.TabID
	default:
		return ""
	}
}

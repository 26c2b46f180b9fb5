package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultTopology returns the empty document used when nothing valid is persisted.
func DefaultTopology() Topology {
	return Topology{Workbenches: []Workbench{}, ActiveWorkbenchID: ""}
}

// DecodeTopology parses a persisted document. It never fails hard: missing or
// malformed input yields DefaultTopology and a non-nil error describing why,
// which callers may log. Partially valid documents are repaired by
// NormalizeTopology.
func DecodeTopology(raw []byte) (Topology, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultTopology(), nil
	}
	var topo Topology
	if err := json.Unmarshal(trimmed, &topo); err != nil {
		return DefaultTopology(), fmt.Errorf("decode topology: %w", err)
	}
	return NormalizeTopology(topo), nil
}

// NormalizeTopology repairs a topology so that it satisfies the document
// invariants: unique non-empty workbench ids, non-empty view lists, in-range
// active view indices, a pinned prefix, and a valid active workbench id.
func NormalizeTopology(in Topology) Topology {
	out := Topology{Workbenches: make([]Workbench, 0, len(in.Workbenches))}
	seen := make(map[TabID]struct{}, len(in.Workbenches))
	for _, wb := range in.Workbenches {
		if wb.ID == "" || wb.ID.IsShell() {
			continue
		}
		if _, ok := seen[wb.ID]; ok {
			continue
		}
		seen[wb.ID] = struct{}{}
		out.Workbenches = append(out.Workbenches, NormalizeWorkbench(wb))
	}
	out.Workbenches = PartitionPinned(out.Workbenches)
	out.ActiveWorkbenchID = in.ActiveWorkbenchID
	if len(out.Workbenches) == 0 {
		out.ActiveWorkbenchID = ""
		return out
	}
	if out.Index(out.ActiveWorkbenchID) == -1 {
		out.ActiveWorkbenchID = out.Workbenches[0].ID
	}
	return out
}

// NormalizeWorkbench gives the workbench at least one view, drops views
// without ids, and clamps the active view index.
func NormalizeWorkbench(in Workbench) Workbench {
	wb := in.Clone()
	views := wb.Views[:0:0]
	for _, v := range wb.Views {
		if v.ID == "" {
			continue
		}
		views = append(views, v)
	}
	if len(views) == 0 {
		views = []View{{ID: ViewID(string(wb.ID) + "-0")}}
	}
	wb.Views = views
	wb.ActiveViewIndex = ClampViewIndex(wb.ActiveViewIndex, len(views))
	if wb.Basename == "" {
		wb.Basename = "/"
	}
	return wb
}

// ClampViewIndex forces idx into [0, n).
func ClampViewIndex(idx, n int) int {
	if n <= 0 || idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// PartitionPinned returns the workbenches with pinned ones first, keeping
// relative order within each group.
func PartitionPinned(in []Workbench) []Workbench {
	pinned, unpinned := SplitPinned(in)
	return append(pinned, unpinned...)
}

// SplitPinned splits the workbenches into pinned and unpinned groups.
func SplitPinned(in []Workbench) (pinned, unpinned []Workbench) {
	pinned = make([]Workbench, 0, len(in))
	unpinned = make([]Workbench, 0, len(in))
	for _, wb := range in {
		if wb.Pinned {
			pinned = append(pinned, wb)
		} else {
			unpinned = append(unpinned, wb)
		}
	}
	return pinned, unpinned
}

package schema

// ViewLocation is the in-app address a view is showing.
type ViewLocation struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// View is one navigable content slot inside a workbench.
type View struct {
	ID         ViewID        `json:"id"`
	Path       *ViewLocation `json:"path,omitempty"`
	Title      string        `json:"title,omitempty"`
	ModuleName string        `json:"moduleName,omitempty"`
}

// Workbench is one tab: a non-empty ordered list of views.
type Workbench struct {
	ID              TabID  `json:"id"`
	Basename        string `json:"basename"`
	Views           []View `json:"views"`
	ActiveViewIndex int    `json:"activeViewIndex"`
	Pinned          bool   `json:"pinned,omitempty"`
}

// Topology is the persisted tab/view arrangement.
type Topology struct {
	Workbenches       []Workbench `json:"workbenches"`
	ActiveWorkbenchID TabID       `json:"activeWorkbenchId"`
}

// TopologyPatch is a shallow partial Topology. Nil fields are left untouched.
type TopologyPatch struct {
	Workbenches       *[]Workbench `json:"workbenches,omitempty"`
	ActiveWorkbenchID *TabID       `json:"activeWorkbenchId,omitempty"`
}

// WorkbenchPatch is a shallow partial Workbench. The id is never patched.
type WorkbenchPatch struct {
	Basename        *string `json:"basename,omitempty"`
	Views           *[]View `json:"views,omitempty"`
	ActiveViewIndex *int    `json:"activeViewIndex,omitempty"`
	Pinned          *bool   `json:"pinned,omitempty"`
}

// WorkbenchTemplate describes a workbench to open, without an id.
type WorkbenchTemplate struct {
	Basename        string `json:"basename"`
	Views           []View `json:"views"`
	ActiveViewIndex int    `json:"activeViewIndex"`
	Pinned          bool   `json:"pinned,omitempty"`
}

// Apply returns t with the patch merged over it.
func (p TopologyPatch) Apply(t Topology) Topology {
	if p.Workbenches != nil {
		t.Workbenches = CloneWorkbenches(*p.Workbenches)
	}
	if p.ActiveWorkbenchID != nil {
		t.ActiveWorkbenchID = *p.ActiveWorkbenchID
	}
	return t
}

// Apply returns w with the patch merged over it.
func (p WorkbenchPatch) Apply(w Workbench) Workbench {
	if p.Basename != nil {
		w.Basename = *p.Basename
	}
	if p.Views != nil {
		w.Views = cloneViews(*p.Views)
	}
	if p.ActiveViewIndex != nil {
		w.ActiveViewIndex = *p.ActiveViewIndex
	}
	if p.Pinned != nil {
		w.Pinned = *p.Pinned
	}
	return w
}

// Template returns the workbench shape without its id.
func (w Workbench) Template() WorkbenchTemplate {
	return WorkbenchTemplate{
		Basename:        w.Basename,
		Views:           cloneViews(w.Views),
		ActiveViewIndex: w.ActiveViewIndex,
		Pinned:          w.Pinned,
	}
}

// ActiveView returns the active view, if the index is in range.
func (w Workbench) ActiveView() (View, bool) {
	if w.ActiveViewIndex < 0 || w.ActiveViewIndex >= len(w.Views) {
		return View{}, false
	}
	return w.Views[w.ActiveViewIndex], true
}

// Clone returns a deep copy of the workbench.
func (w Workbench) Clone() Workbench {
	w.Views = cloneViews(w.Views)
	return w
}

// Clone returns a deep copy of the topology.
func (t Topology) Clone() Topology {
	t.Workbenches = CloneWorkbenches(t.Workbenches)
	return t
}

// Index returns the position of the workbench with id, or -1.
func (t Topology) Index(id TabID) int {
	for i, w := range t.Workbenches {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the workbench with id.
func (t Topology) Find(id TabID) (Workbench, bool) {
	idx := t.Index(id)
	if idx == -1 {
		return Workbench{}, false
	}
	return t.Workbenches[idx], true
}

// Active returns the active workbench.
func (t Topology) Active() (Workbench, bool) {
	if t.ActiveWorkbenchID == "" {
		return Workbench{}, false
	}
	return t.Find(t.ActiveWorkbenchID)
}

// IDs returns the workbench ids in order.
func (t Topology) IDs() []TabID {
	ids := make([]TabID, 0, len(t.Workbenches))
	for _, w := range t.Workbenches {
		ids = append(ids, w.ID)
	}
	return ids
}

// CloneWorkbenches deep-copies a workbench slice.
func CloneWorkbenches(in []Workbench) []Workbench {
	if in == nil {
		return nil
	}
	out := make([]Workbench, len(in))
	for i, w := range in {
		out[i] = w.Clone()
	}
	return out
}

func cloneViews(in []View) []View {
	if in == nil {
		return nil
	}
	out := make([]View, len(in))
	for i, v := range in {
		if v.Path != nil {
			path := *v.Path
			v.Path = &path
		}
		out[i] = v
	}
	return out
}

package titles

import (
	"time"

	"pkt.systems/tabshell/schema"
)

// DocTitles looks up document titles.
type DocTitles interface {
	DocTitle(docID string) (string, bool)
}

// JournalDates looks up journal page dates.
type JournalDates interface {
	JournalDate(docID string) (string, bool)
}

// Untitled is shown for docs without a title.
const Untitled = "Untitled"

const journalLayout = "2006-01-02"

// DisplayLayout is how journal dates are shown.
const DisplayLayout = "Jan 2, 2006"

// Resolver turns a view address into a title and module name.
type Resolver struct {
	titles   DocTitles
	journals JournalDates
}

// NewResolver constructs a Resolver. Either lookup may be nil.
func NewResolver(titles DocTitles, journals JournalDates) *Resolver {
	return &Resolver{titles: titles, journals: journals}
}

// FullURL joins basename and location the way content surfaces address views.
func FullURL(basename string, loc schema.ViewLocation) string {
	return basename + loc.Pathname + loc.Search + loc.Hash
}

// Resolve returns the title and module name for a view address.
func (r *Resolver) Resolve(basename string, loc schema.ViewLocation) (title string, module Module, ok bool) {
	meta, ok := ResolveRouteLinkMeta(FullURL(basename, loc))
	if !ok {
		return "", "", false
	}
	if meta.ModuleName != ModuleDoc {
		return moduleTitles[meta.ModuleName], meta.ModuleName, true
	}
	if r.journals != nil {
		if date, ok := r.journals.JournalDate(meta.DocID); ok {
			return formatJournalDate(date), ModuleJournal, true
		}
	}
	if r.titles != nil {
		if t, ok := r.titles.DocTitle(meta.DocID); ok {
			return t, ModuleDoc, true
		}
	}
	return Untitled, ModuleDoc, true
}

// Fill sets title and module name on a view that has a path. Views without a
// resolvable path are returned unchanged.
func (r *Resolver) Fill(basename string, view schema.View) schema.View {
	if view.Path == nil {
		return view
	}
	title, module, ok := r.Resolve(basename, *view.Path)
	if !ok {
		return view
	}
	view.Title = title
	view.ModuleName = string(module)
	return view
}

// FillWorkbench fills every view of wb.
func (r *Resolver) FillWorkbench(wb schema.Workbench) schema.Workbench {
	wb = wb.Clone()
	for i, v := range wb.Views {
		wb.Views[i] = r.Fill(wb.Basename, v)
	}
	return wb
}

func formatJournalDate(date string) string {
	t, err := time.Parse(journalLayout, date)
	if err != nil {
		return date
	}
	return t.Format(DisplayLayout)
}

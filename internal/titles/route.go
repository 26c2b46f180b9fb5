// Package titles resolves display titles and categories for view addresses.
package titles

import (
	"net/url"
	"strings"
)

// Module names a route category.
type Module string

const (
	ModuleAll        Module = "all"
	ModuleCollection Module = "collection"
	ModuleTag        Module = "tag"
	ModuleTrash      Module = "trash"
	ModuleDoc        Module = "doc"
	// ModuleJournal is reported for docs that are journal pages.
	ModuleJournal Module = "journal"
)

var moduleTitles = map[Module]string{
	ModuleAll:        "All pages",
	ModuleCollection: "Collections",
	ModuleTag:        "Tags",
	ModuleTrash:      "Trash",
}

// LinkMeta is what a workspace route points at.
type LinkMeta struct {
	WorkspaceID string
	ModuleName  Module
	// SubID is the collection/tag id for module routes.
	SubID string
	DocID string
}

// ResolveRouteLinkMeta parses /workspace/{id}/{module-or-doc}[/{sub}] out of
// a full in-app URL. Query and fragment are ignored.
func ResolveRouteLinkMeta(raw string) (LinkMeta, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return LinkMeta{}, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, seg := range segments {
		if seg == "workspace" {
			idx = i
			break
		}
	}
	if idx == -1 || len(segments) < idx+3 {
		return LinkMeta{}, false
	}
	meta := LinkMeta{WorkspaceID: segments[idx+1]}
	target := segments[idx+2]
	if meta.WorkspaceID == "" || target == "" {
		return LinkMeta{}, false
	}
	if _, ok := moduleTitles[Module(target)]; ok {
		meta.ModuleName = Module(target)
		if len(segments) > idx+3 {
			meta.SubID = segments[idx+3]
		}
		return meta, true
	}
	meta.ModuleName = ModuleDoc
	meta.DocID = target
	return meta, true
}

package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"
)

//go:embed assets/*
var embeddedAssets embed.FS

const (
	shellPage   = "shell.html"
	contentPage = "content.html"
)

func assetsRoot() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}

// pageSet holds the chrome and content pages rendered for one base href.
type pageSet struct {
	files    fs.FS
	rendered map[string][]byte
	modTime  time.Time
}

func loadPages(files fs.FS, baseHref string) (*pageSet, error) {
	set := &pageSet{
		files:    files,
		rendered: make(map[string][]byte, 2),
		modTime:  time.Now(),
	}
	for _, name := range []string{shellPage, contentPage} {
		data, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", name, err)
		}
		set.rendered[name] = applyBaseHref(data, baseHref)
	}
	return set, nil
}

func (p *pageSet) serve(w http.ResponseWriter, r *http.Request, name string) {
	data, ok := p.rendered[name]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, p.modTime, bytes.NewReader(data))
}

func (p *pageSet) static() http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(http.FS(p.files)))
}

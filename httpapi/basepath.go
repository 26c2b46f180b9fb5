package httpapi

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"
)

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

// normalizeBasePath returns "" or a path with a leading and no trailing slash.
func normalizeBasePath(value string) string {
	path := "/" + strings.Trim(strings.TrimSpace(value), "/")
	if path == "/" {
		return ""
	}
	return path
}

func buildBaseHref(baseURL, basePath string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	href := base + normalizeBasePath(basePath)
	if href == "" {
		return ""
	}
	return href + "/"
}

// applyBaseHref swaps the shell page placeholder for a base element.
func applyBaseHref(page []byte, baseHref string) []byte {
	replacement := ""
	if strings.TrimSpace(baseHref) != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(baseHref))
	}
	return bytes.ReplaceAll(page, []byte(baseHrefPlaceholder), []byte(replacement))
}

// mountBasePath serves handler below prefix and redirects the bare prefix.
func mountBasePath(prefix string, handler http.Handler) http.Handler {
	if prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

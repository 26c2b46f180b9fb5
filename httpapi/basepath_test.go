package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"//", ""},
		{"shell", "/shell"},
		{"/shell", "/shell"},
		{" /desk/shell/ ", "/desk/shell"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildBaseHref(t *testing.T) {
	cases := []struct {
		baseURL  string
		basePath string
		want     string
	}{
		{"", "", ""},
		{"", "/shell", "/shell/"},
		{"http://127.0.0.1:27420", "", "http://127.0.0.1:27420/"},
		{"http://127.0.0.1:27420/", "shell", "http://127.0.0.1:27420/shell/"},
	}
	for _, tc := range cases {
		if got := buildBaseHref(tc.baseURL, tc.basePath); got != tc.want {
			t.Fatalf("buildBaseHref(%q, %q) = %q, want %q", tc.baseURL, tc.basePath, got, tc.want)
		}
	}
}

func TestApplyBaseHref(t *testing.T) {
	page := []byte("<head><!-- BASE_HREF --></head>")
	if got := string(applyBaseHref(page, "")); got != "<head></head>" {
		t.Fatalf("unexpected page %q", got)
	}
	if got := string(applyBaseHref(page, "/a\"b/")); got != `<head><base href="/a&#34;b/" /></head>` {
		t.Fatalf("unexpected page %q", got)
	}
}

func TestMountBasePathRedirects(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})
	handler := mountBasePath("/shell", inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shell", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/shell/" {
		t.Fatalf("unexpected redirect %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shell/api/topology", nil))
	if rec.Body.String() != "/api/topology" {
		t.Fatalf("expected stripped path, got %q", rec.Body.String())
	}
}

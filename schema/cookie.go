package schema

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Cookie describes a cookie in the shared session scope of all surfaces.
type Cookie struct {
	URL      string     `json:"url,omitempty"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain,omitempty"`
	Path     string     `json:"path,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
	HTTPOnly bool       `json:"httpOnly,omitempty"`
	SameSite string     `json:"sameSite,omitempty"`
	Expires  *time.Time `json:"expirationDate,omitempty"`
}

// Validate checks the fields a cookie write needs.
func (c Cookie) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCookie)
	}
	if c.URL == "" && c.Domain == "" {
		return fmt.Errorf("%w: missing url or domain", ErrInvalidCookie)
	}
	return nil
}

// Matches reports whether the cookie is visible for name ("" matches all).
func (c Cookie) Matches(name string) bool {
	return name == "" || c.Name == name
}

// ParseCookie turns a Set-Cookie style string into cookie details scoped to origin.
func ParseCookie(origin, raw string) (Cookie, error) {
	parsed, err := http.ParseSetCookie(strings.TrimSpace(raw))
	if err != nil {
		return Cookie{}, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	cookie := Cookie{
		URL:      origin,
		Name:     parsed.Name,
		Value:    parsed.Value,
		Domain:   parsed.Domain,
		Path:     parsed.Path,
		Secure:   parsed.Secure,
		HTTPOnly: parsed.HttpOnly,
		SameSite: sameSiteName(parsed.SameSite),
	}
	switch {
	case parsed.MaxAge > 0:
		exp := time.Now().Add(time.Duration(parsed.MaxAge) * time.Second).UTC()
		cookie.Expires = &exp
	case !parsed.Expires.IsZero():
		exp := parsed.Expires.UTC()
		cookie.Expires = &exp
	}
	if err := cookie.Validate(); err != nil {
		return Cookie{}, err
	}
	return cookie, nil
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "no_restriction"
	default:
		return ""
	}
}

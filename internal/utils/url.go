package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// IsValidURL reports whether s is an absolute http(s) URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NormalizeURL validates s and strips any trailing slash.
func NormalizeURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsValidURL(s) {
		return "", fmt.Errorf("invalid url %q", s)
	}
	return strings.TrimRight(s, "/"), nil
}

// WebsocketURL turns an http(s) base URL into the matching ws(s) URL for path.
func WebsocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

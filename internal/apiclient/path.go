package apiclient

import (
	"net/http"
	"strings"
)

// NormalizePath appends the trailing slash the backend requires on mutating
// requests, keeping any query string in place.
func NormalizePath(method, path string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return path
	}

	p, query, hasQuery := strings.Cut(path, "?")
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	if hasQuery {
		return p + "?" + query
	}
	return p
}

func pathOnly(path string) string {
	p, _, _ := strings.Cut(path, "?")
	return "/" + strings.TrimLeft(p, "/")
}

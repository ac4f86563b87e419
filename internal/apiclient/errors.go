package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrServer       = errors.New("server error")
)

// Error is a non-2xx backend response. Fields holds the decoded JSON body when
// the backend sent an object.
type Error struct {
	Method string
	Path   string
	Status int
	Body   []byte
	Fields map[string]any
}

func newError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status, Body: body}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		e.Fields = fields
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

var messageKeys = []string{"detail", "message", "error", "non_field_errors"}

// Message extracts a human readable reason from the structured body, or ""
// when the body carries none.
func (e *Error) Message() string {
	if len(e.Fields) == 0 {
		return ""
	}
	for _, k := range messageKeys {
		if msg := firstString(e.Fields[k]); msg != "" {
			return msg
		}
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msg := firstString(e.Fields[k]); msg != "" {
			return k + ": " + msg
		}
	}
	return ""
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s := firstString(t["message"]); s != "" {
			return s
		}
		return firstString(t["detail"])
	}
	return ""
}

// MessageOr returns the backend-provided reason carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// listEnvelopeKeys are the wrapper keys accepted around a list payload, in
// lookup order. Anything else decodes as an empty list.
var listEnvelopeKeys = []string{"results", "data"}

// DecodeList accepts a bare JSON array, or an object wrapping the array under
// one of listEnvelopeKeys. Unrecognized shapes yield an empty list, not an
// error; only a malformed array is reported.
func DecodeList[T any](data []byte) ([]T, error) {
	return decodeListWith[T](data, listEnvelopeKeys)
}

func decodeListWith[T any](data []byte, keys []string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return []T{}, nil
		}
		for _, k := range keys {
			inner, ok := env[k]
			if !ok {
				continue
			}
			inner = bytes.TrimSpace(inner)
			if len(inner) == 0 || inner[0] != '[' {
				continue
			}
			return decodeListWith[T](inner, nil)
		}
	}
	return []T{}, nil
}

// DecodeListWithKeys is DecodeList with extra envelope keys tried before the
// defaults.
func DecodeListWithKeys[T any](data []byte, extra ...string) ([]T, error) {
	keys := append(append([]string{}, extra...), listEnvelopeKeys...)
	return decodeListWith[T](data, keys)
}

// GetList fetches path and decodes the body with DecodeList.
func GetList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw, WithQuery(query)); err != nil {
		return nil, err
	}
	return DecodeList[T](raw)
}

package handler

import (
	"encoding/json"
	"fmt"
)

// Info is the schema-less key/value tree embedded in an event's raw
// information payload. Accessors check both presence and kind and fall
// back to absent instead of panicking; a field of the wrong kind is
// treated as missing.
type Info map[string]any

// ParseInfo decodes the embedded payload. Empty or non-JSON payloads
// yield a nil Info, whose accessors all report absent.
func ParseInfo(raw string) Info {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// String returns the string field k if present and of string kind.
func (i Info) String(k string) (string, bool) {
	v, ok := i[k]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Number returns the numeric field k if present and of number kind.
func (i Info) Number(k string) (float64, bool) {
	v, ok := i[k]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Parameter returns the positional field "Parameter<n>" as a string.
func (i Info) Parameter(n int) (string, bool) {
	return i.String(fmt.Sprintf("Parameter%d", n))
}

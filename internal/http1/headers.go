// Package http1 implements the HTTP/1.1 wire parser and writer: request and
// response line/header parsing, chunked transfer-encoding, trailers,
// keep-alive handling, and the Websocket-upgrade handshake check (§4.2).
package http1

import "strings"

// Headers is a case-insensitive multimap that preserves the original case
// and the order of duplicate values, per spec §3 "Request/Response":
// "header multimap (keys case-insensitive, order of duplicate values
// preserved)".
type Headers struct {
	// order of first-seen canonical (lowercased) keys, for stable emission.
	order []string
	// vals holds, per lowercased key, the values in arrival order together
	// with the original-case key under which each value was added.
	vals map[string][]headerValue
}

type headerValue struct {
	origKey string
	value   string
}

// NewHeaders builds an empty Headers multimap.
func NewHeaders() *Headers {
	return &Headers{vals: make(map[string][]headerValue)}
}

func lower(k string) string { return strings.ToLower(k) }

// Add appends a value under key, preserving key's original case for emit.
func (h *Headers) Add(key, value string) {
	lk := lower(key)
	if _, ok := h.vals[lk]; !ok {
		h.order = append(h.order, lk)
	}
	h.vals[lk] = append(h.vals[lk], headerValue{origKey: key, value: value})
}

// Set replaces all values under key with a single value.
func (h *Headers) Set(key, value string) {
	lk := lower(key)
	if _, ok := h.vals[lk]; !ok {
		h.order = append(h.order, lk)
	}
	h.vals[lk] = []headerValue{{origKey: key, value: value}}
}

// Get returns the first value for key, case-insensitively.
func (h *Headers) Get(key string) string {
	vs := h.vals[lower(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0].value
}

// Values returns all values for key, in arrival order.
func (h *Headers) Values(key string) []string {
	vs := h.vals[lower(key)]
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.value
	}
	return out
}

// Has reports whether key was set at all.
func (h *Headers) Has(key string) bool {
	_, ok := h.vals[lower(key)]
	return ok
}

// Del removes all values under key.
func (h *Headers) Del(key string) {
	lk := lower(key)
	delete(h.vals, lk)
	for i, k := range h.order {
		if k == lk {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// EachOriginalCase iterates every (original-case-key, value) pair in the
// order headers were added, for wire emission that must preserve verbatim
// case (§4.2: "Header names are lowercased for lookup but preserved verbatim
// on emit").
func (h *Headers) EachOriginalCase(fn func(key, value string)) {
	for _, lk := range h.order {
		for _, v := range h.vals[lk] {
			fn(v.origKey, v.value)
		}
	}
}

// Merge appends all of other's values into h (used to append trailers to
// the header set, §4.2).
func (h *Headers) Merge(other *Headers) {
	if other == nil {
		return
	}
	other.EachOriginalCase(h.Add)
}

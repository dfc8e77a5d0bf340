package httpmsg

import (
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Headers is a case-insensitive multi-value header map. Lookups fold the
// key to lowercase; duplicate headers received on the wire are combined
// with ", " per spec.md §3 "headers".
type Headers struct {
	m map[string]string
}

// NewHeaders returns an empty header map.
func NewHeaders() Headers {
	return Headers{m: make(map[string]string)}
}

// Set replaces the value for name (folded to lowercase).
func (h *Headers) Set(name, value string) {
	if h.m == nil {
		h.m = make(map[string]string)
	}
	h.m[strings.ToLower(name)] = value
}

// Add combines name's value with any existing value using ", " per
// spec.md §3, the way repeated wire headers are folded.
func (h *Headers) Add(name, value string) {
	if h.m == nil {
		h.m = make(map[string]string)
	}
	key := strings.ToLower(name)
	if existing, ok := h.m[key]; ok {
		h.m[key] = existing + ", " + value
	} else {
		h.m[key] = value
	}
}

// Get performs a case-insensitive lookup. Matches spec.md §8's
// "idempotent lowercase header lookup" invariant: Get(N) == Get(lower(N)).
func (h Headers) Get(name string) string {
	if h.m == nil {
		return ""
	}
	return h.m[strings.ToLower(name)]
}

// Has reports whether the header is present at all.
func (h Headers) Has(name string) bool {
	if h.m == nil {
		return false
	}
	_, ok := h.m[strings.ToLower(name)]
	return ok
}

// Del removes a header.
func (h *Headers) Del(name string) {
	if h.m == nil {
		return
	}
	delete(h.m, strings.ToLower(name))
}

// Keys returns the lowercase header names in sorted order, for
// deterministic serialization and testing.
func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h.m))
	for k := range h.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	cp := make(map[string]string, len(h.m))
	for k, v := range h.m {
		cp[k] = v
	}
	return Headers{m: cp}
}

// validHeaderName reports whether name matches the RFC 7230 token grammar.
// Delegated to golang.org/x/net/http/httpguts, the ecosystem's RFC 7230
// token/value checker (the teacher already depends on golang.org/x/net).
func validHeaderName(name string) bool {
	return name != "" && httpguts.ValidHeaderFieldName(name)
}

// validHeaderValue reports whether value contains no CR/LF and no C0
// controls other than HTAB, per spec.md §3 "Invariants".
func validHeaderValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}

// canonicalHeaderCase renders "content-type" as "Content-Type": uppercase
// the first letter and the letter after every '-', lowercase elsewhere.
// Per spec.md §4.1 "Serialize".
func canonicalHeaderCase(name string) string {
	b := []byte(strings.ToLower(name))
	upperNext := true
	for i, c := range b {
		if upperNext && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upperNext = c == '-'
	}
	return string(b)
}

// trimOWS trims leading/trailing HTAB and SPACE per RFC 7230 OWS.
func trimOWS(s string) string {
	return strings.Trim(s, " \t")
}

package oraclesql

import (
	"strconv"
	"strings"
)

// PathSegment is one element of a canonicalized field path: either a named
// key or a numeric array index.
type PathSegment struct {
	Key   string
	Index int
	IsIdx bool
}

// CanonicalPath is a field path split into segments, numeric components
// already recognized as array indices ($items.0.price -> items[0].price).
// Canonicalization is idempotent: re-splitting an already-canonical path
// produces the same segments.
type CanonicalPath struct {
	Segments []PathSegment
}

// ParsePath splits a dotted MongoDB field reference (with or without a
// leading "$") into canonical segments.
func ParsePath(ref string) CanonicalPath {
	ref = strings.TrimPrefix(ref, "$")
	// an already-canonical JSON path ($.items[0].price) splits the same way
	ref = strings.TrimPrefix(ref, ".")
	ref = strings.NewReplacer("[", ".", "]", "").Replace(ref)
	if ref == "" {
		return CanonicalPath{}
	}
	parts := strings.Split(ref, ".")
	segs := make([]PathSegment, 0, len(parts))
	for _, p := range parts {
		if n, ok := parseArrayIndex(p); ok {
			segs = append(segs, PathSegment{Index: n, IsIdx: true})
			continue
		}
		segs = append(segs, PathSegment{Key: p})
	}
	return CanonicalPath{Segments: segs}
}

func parseArrayIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// JSONPath renders the canonical path as a JSON-path-style string suitable
// for embedding inside '$....' literals: $.a.b[2].c.
func (p CanonicalPath) JSONPath() string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range p.Segments {
		if s.IsIdx {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteString("]")
			continue
		}
		b.WriteString(".")
		b.WriteString(s.Key)
	}
	return b.String()
}

// DotNotation renders the canonical path as Oracle dot-notation access
// rooted at the given base expression (an alias.data expression):
// base.field.sub, or base.field[2].sub when a numeric segment is present.
func (p CanonicalPath) DotNotation(base string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, s := range p.Segments {
		if s.IsIdx {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteString("]")
			continue
		}
		b.WriteString(".")
		b.WriteString(quotePathKey(s.Key))
	}
	return b.String()
}

// quotePathKey double-quotes a path segment that collides with a reserved
// identifier such as _id; otherwise passes it through unchanged.
func quotePathKey(key string) string {
	if key == "_id" {
		return `"_id"`
	}
	return key
}

// Package keypath holds every rule about the "/" separator that simulates
// folders inside flat object keys.
//
// Object keys never start with a separator. Navigation paths come from users
// and may have leading, trailing or doubled separators; Prefix turns them into
// the canonical form that can be compared against keys with strings.HasPrefix.
package keypath

import "strings"

// Separator is the conventional folder delimiter inside object keys.
const Separator = "/"

// Prefix returns the canonical listing prefix for a navigation path.
//
// Leading separators are removed, and a non-empty result always ends in a
// separator. The root is the empty string. Prefix is idempotent.
//
//	Prefix("")        == ""
//	Prefix("/")       == ""
//	Prefix("a/b")     == "a/b/"
//	Prefix("/a/b/")   == "a/b/"
func Prefix(p string) string {
	p = strings.TrimLeft(p, Separator)
	if p == "" || strings.HasSuffix(p, Separator) {
		return p
	}
	return p + Separator
}

// Segments splits p on the separator and drops empty segments, so leading,
// trailing and doubled separators are ignored. It returns an empty, non-nil
// slice for the root.
func Segments(p string) []string {
	parts := strings.Split(p, Separator)
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Join joins the non-empty segments with the separator.
func Join(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(s)
	}
	return b.String()
}

// Clean returns the display form of a navigation path: no leading, trailing
// or doubled separators.
func Clean(p string) string {
	return Join(Segments(p)...)
}

// Relative strips prefix from key. It reports false when key is not under
// prefix.
func Relative(key, prefix string) (string, bool) {
	return strings.CutPrefix(key, prefix)
}

// SplitFirst returns the first segment of a relative key and whether further
// segments follow it. An empty head with more set means the relative key
// began with a separator ("a//b" seen from "a/").
func SplitFirst(rel string) (head string, more bool) {
	i := strings.Index(rel, Separator)
	if i < 0 {
		return rel, false
	}
	return rel[:i], true
}

// Base returns the part of key after its last separator.
//
//	Base("a/b/c.txt") == "c.txt"
//	Base("c.txt")     == "c.txt"
func Base(key string) string {
	return key[strings.LastIndex(key, Separator)+1:]
}

// IsMarker reports whether key is a zero-byte "directory marker" object
// such as "docs/".
func IsMarker(key string) bool {
	return strings.HasSuffix(key, Separator)
}

// BaseName returns the last element of a client-supplied file name, accepting
// both "/" and "\" since browsers on Windows may send either.
func BaseName(name string) string {
	return name[strings.LastIndexAny(name, `/\`)+1:]
}

// UploadKey builds the object key for a file uploaded into folder.
//
//	UploadKey("", "a.txt")        == "a.txt"
//	UploadKey("/docs", "a.txt")   == "docs/a.txt"
//	UploadKey("docs/", "x/a.txt") == "docs/a.txt"
func UploadKey(folder, filename string) string {
	return Prefix(folder) + BaseName(filename)
}

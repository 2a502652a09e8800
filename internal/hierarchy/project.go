// Package hierarchy projects a flat object listing onto a folder view.
//
// Object stores have no directories; keys like "images/2024/a.png" only look
// hierarchical. Project takes the whole listing plus a navigation path and
// returns the single level a file browser would show there: one Folder per
// distinct first segment that continues deeper, one File per object stored
// directly at the level, folders first, then collated by name.
//
// Everything here is a pure function of its arguments. Callers may project
// the same listing concurrently.
package hierarchy

import (
	"slices"
	"strings"

	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/keypath"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Project returns the level visible at currentPath.
//
// currentPath may be empty (root), and may carry leading or trailing
// separators. Objects outside the path and directory markers equal to the
// path produce nothing. When one name is both a folder and a direct file,
// the folder wins. Project never fails.
func Project(objects []filestore.ObjectInfo, currentPath string) Level {
	prefix := keypath.Prefix(currentPath)

	// name -> entry, scoped to this call.
	items := make(map[string]Entry)

	for _, obj := range objects {
		if obj.Key == "" {
			continue
		}
		rel, ok := keypath.Relative(obj.Key, prefix)
		if !ok {
			continue
		}

		name, deeper := keypath.SplitFirst(rel)
		if prev, seen := items[name]; seen && prev.Kind() == KindFolder {
			continue
		}

		switch {
		case deeper:
			items[name] = Folder{Name: name, FullPath: folderPath(prefix, name)}
		case name != "":
			items[name] = newFile(name, obj)
		}
		// name == "" && !deeper: the key is the directory marker for prefix.
	}

	entries := make([]Entry, 0, len(items))
	for _, e := range items {
		entries = append(entries, e)
	}
	sortEntries(entries)

	return Level{
		Prefix:      prefix,
		Entries:     entries,
		Breadcrumbs: Breadcrumbs(currentPath),
	}
}

// folderPath is the navigation path for a folder named name under prefix.
// An empty name comes from a doubled separator ("a//b"); its path keeps the
// extra separator so navigating into it reaches the keys below.
func folderPath(prefix, name string) string {
	if name == "" {
		return prefix + keypath.Separator
	}
	return prefix + name
}

func newFile(name string, obj filestore.ObjectInfo) File {
	return File{
		Name:         name,
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: obj.LastModified,
		ETag:         obj.ETag,
		ContentType:  obj.ContentType,
	}
}

// Breadcrumbs splits a navigation path into its ancestor trail. Empty
// segments are dropped, so "/a//b/" and "a/b" give the same trail.
func Breadcrumbs(currentPath string) []Breadcrumb {
	segs := keypath.Segments(currentPath)
	out := make([]Breadcrumb, len(segs))
	for i, s := range segs {
		out[i] = Breadcrumb{Name: s, Path: keypath.Join(segs[:i+1]...)}
	}
	return out
}

// newCollator returns a collator for one sort. Collators keep scratch
// buffers and must not be shared between goroutines.
func newCollator() *collate.Collator {
	return collate.New(language.English)
}

// compareNames orders names by collation and falls back to byte order for
// names the collator considers equal, which keeps the order total.
func compareNames(c *collate.Collator, a, b string) int {
	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func sortEntries(entries []Entry) {
	c := newCollator()
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Kind() != b.Kind() {
			if a.Kind() == KindFolder {
				return -1
			}
			return 1
		}
		return compareNames(c, a.DisplayName(), b.DisplayName())
	})
}

package hierarchy

import (
	"slices"
	"strings"

	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/keypath"
)

// Search returns every file whose full key contains query, ignoring case,
// ordered by key. Directory markers are never returned. An empty query
// matches every file. limit <= 0 means no limit.
func Search(objects []filestore.ObjectInfo, query string, limit int) []File {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]File, 0)
	for _, obj := range objects {
		if obj.Key == "" || keypath.IsMarker(obj.Key) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(obj.Key), q) {
			continue
		}
		out = append(out, newFile(keypath.Base(obj.Key), obj))
	}

	c := newCollator()
	slices.SortFunc(out, func(a, b File) int {
		return compareNames(c, a.Key, b.Key)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

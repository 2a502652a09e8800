package hierarchy

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/keypath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
)

func obj(key string) filestore.ObjectInfo {
	return filestore.ObjectInfo{Key: key, Size: int64(len(key)), LastModified: t1}
}

func objs(keys ...string) []filestore.ObjectInfo {
	out := make([]filestore.ObjectInfo, len(keys))
	for i, k := range keys {
		out[i] = obj(k)
	}
	return out
}

// names renders entries as "name/" for folders and "name" for files.
func names(l Level) []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.DisplayName()
		if e.Kind() == KindFolder {
			out[i] += "/"
		}
	}
	return out
}

func TestProject_EndToEnd(t *testing.T) {
	listing := objs("images/2024/a.png", "images/2024/b.png", "readme.txt")

	root := Project(listing, "")
	require.Len(t, root.Entries, 2)
	assert.Equal(t, Folder{Name: "images", FullPath: "images"}, root.Entries[0])
	file, ok := root.Entries[1].(File)
	require.True(t, ok)
	assert.Equal(t, "readme.txt", file.Name)
	assert.Equal(t, "readme.txt", file.Key)
	assert.Empty(t, root.Breadcrumbs)

	images := Project(listing, "images")
	assert.Equal(t, []Entry{Folder{Name: "2024", FullPath: "images/2024"}}, images.Entries)
	assert.Equal(t, []Breadcrumb{{Name: "images", Path: "images"}}, images.Breadcrumbs)
	assert.Equal(t, "images/", images.Prefix)

	year := Project(listing, "images/2024/")
	assert.Equal(t, []string{"a.png", "b.png"}, names(year))
}

func TestProject_Dedup(t *testing.T) {
	listing := []filestore.ObjectInfo{
		{Key: "a/x", Size: 10, LastModified: t1},
		{Key: "a/y", Size: 20, LastModified: t2},
	}
	l := Project(listing, "")
	assert.Equal(t, []Entry{Folder{Name: "a", FullPath: "a"}}, l.Entries)
}

func TestProject_FoldersBeforeFiles(t *testing.T) {
	l := Project(objs("a", "b/inner"), "")
	assert.Equal(t, []string{"b/", "a"}, names(l))
}

func TestProject_FilePassthrough(t *testing.T) {
	listing := []filestore.ObjectInfo{{
		Key: "docs/report.pdf", Size: 2048, LastModified: t2,
		ETag: "abc", ContentType: "application/pdf",
	}}
	l := Project(listing, "docs")
	require.Len(t, l.Entries, 1)
	assert.Equal(t, File{
		Name: "report.pdf", Key: "docs/report.pdf", Size: 2048,
		LastModified: t2, ETag: "abc", ContentType: "application/pdf",
	}, l.Entries[0])
}

func TestProject_DirectoryMarkerSuppressed(t *testing.T) {
	listing := objs("docs/", "docs/a.txt")

	l := Project(listing, "docs/")
	assert.Equal(t, []string{"a.txt"}, names(l))

	// At the root the marker makes "docs" a folder, once.
	assert.Equal(t, []string{"docs/"}, names(Project(listing, "")))

	// A marker alone gives an empty level.
	assert.Empty(t, Project(objs("empty/"), "empty").Entries)
}

func TestProject_FolderWinsOverSameNamedFile(t *testing.T) {
	for _, listing := range [][]filestore.ObjectInfo{
		objs("a", "a/child"),
		objs("a/child", "a"),
	} {
		l := Project(listing, "")
		assert.Equal(t, []Entry{Folder{Name: "a", FullPath: "a"}}, l.Entries)
	}
}

func TestProject_FolderNotOverwritten(t *testing.T) {
	// The first folder entry stays; later contributors do not replace it.
	l := Project(objs("x/1", "x/2/deep", "x/"), "")
	require.Len(t, l.Entries, 1)
	assert.Equal(t, Folder{Name: "x", FullPath: "x"}, l.Entries[0])
}

func TestProject_EmptyListing(t *testing.T) {
	for _, listing := range [][]filestore.ObjectInfo{nil, {}} {
		l := Project(listing, "a/b")
		assert.NotNil(t, l.Entries)
		assert.Empty(t, l.Entries)
		assert.Equal(t, []Breadcrumb{{"a", "a"}, {"b", "a/b"}}, l.Breadcrumbs)
	}
}

func TestProject_PathBeyondListing(t *testing.T) {
	l := Project(objs("a/b.txt"), "a/b.txt/c/d")
	assert.Empty(t, l.Entries)
	assert.Len(t, l.Breadcrumbs, 4)
}

func TestProject_SkipsEmptyKeys(t *testing.T) {
	l := Project([]filestore.ObjectInfo{{Key: ""}, obj("a.txt")}, "")
	assert.Equal(t, []string{"a.txt"}, names(l))
}

func TestProject_OnlySeparatorsIsRoot(t *testing.T) {
	listing := objs("a/x", "b.txt")
	assert.Equal(t, Project(listing, ""), Project(listing, "///"))
}

func TestProject_LeadingSeparatorPath(t *testing.T) {
	listing := objs("docs/a.txt", "docs/sub/b.txt")
	assert.Equal(t, []string{"sub/", "a.txt"}, names(Project(listing, "/docs")))
	assert.Equal(t, Folder{Name: "sub", FullPath: "docs/sub"}, Project(listing, "/docs/").Entries[0])
}

func TestProject_DoubledSeparator(t *testing.T) {
	// "a//b" seen from "a/" has an empty first segment. It becomes a folder
	// named "" whose path keeps the doubled separator.
	listing := objs("a//b", "a/c")

	l := Project(listing, "a")
	require.Len(t, l.Entries, 2)
	assert.Equal(t, Folder{Name: "", FullPath: "a//"}, l.Entries[0])
	assert.Equal(t, "c", l.Entries[1].DisplayName())

	inner := Project(listing, "a//")
	assert.Equal(t, []string{"b"}, names(inner))
	assert.Equal(t, []Breadcrumb{{"a", "a"}}, inner.Breadcrumbs)

	// From the root, "a//b" is just part of folder "a".
	assert.Equal(t, []string{"a/"}, names(Project(listing, "")))
}

func TestProject_DuplicateKeysDoNotPanic(t *testing.T) {
	listing := []filestore.ObjectInfo{
		{Key: "a.txt", Size: 1},
		{Key: "a.txt", Size: 2},
	}
	l := Project(listing, "")
	require.Len(t, l.Entries, 1)
	assert.Equal(t, int64(2), l.Entries[0].(File).Size)
}

func TestProject_CollatedOrder(t *testing.T) {
	l := Project(objs("banana", "Apple", "cherry", "apple", "Éclair", "eclair"), "")
	// Locale order interleaves case instead of putting all capitals first,
	// and keeps accented letters next to their base letter.
	assert.Equal(t, []string{"apple", "Apple", "banana", "cherry", "eclair", "Éclair"}, names(l))
}

func TestProject_TotalOrderForCanonicallyEqualNames(t *testing.T) {
	composed := "caf\u00e9.txt"
	decomposed := "cafe\u0301.txt"

	a := Project(objs(composed, decomposed), "")
	b := Project(objs(decomposed, composed), "")
	assert.Equal(t, names(a), names(b))
	assert.Equal(t, []string{decomposed, composed}, names(a))
}

func TestBreadcrumbs(t *testing.T) {
	assert.Equal(t, []Breadcrumb{{"a", "a"}, {"b", "a/b"}, {"c", "a/b/c"}}, Breadcrumbs("a/b/c"))
	assert.Equal(t, Breadcrumbs("a/b/c"), Breadcrumbs("/a//b/c/"))
	assert.Equal(t, []Breadcrumb{}, Breadcrumbs(""))
	assert.Equal(t, []Breadcrumb{}, Breadcrumbs("/"))
}

func TestLevel_JSON(t *testing.T) {
	listing := []filestore.ObjectInfo{
		{Key: "docs/a.txt", Size: 1536, LastModified: t1},
		{Key: "img/x.png", Size: 1},
	}
	raw, err := json.Marshal(Project(listing, ""))
	require.NoError(t, err)

	var decoded struct {
		Prefix  string           `json:"prefix"`
		Entries []map[string]any `json:"entries"`
		Crumbs  []Breadcrumb     `json:"breadcrumbs"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "folder", decoded.Entries[0]["kind"])
	assert.Equal(t, "docs", decoded.Entries[0]["fullPath"])
	assert.NotNil(t, decoded.Crumbs, "root breadcrumbs serialise as []")

	raw, err = json.Marshal(Project(listing, "docs").Entries[0])
	require.NoError(t, err)
	var file map[string]any
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, "file", file["kind"])
	assert.Equal(t, "docs/a.txt", file["key"])
	assert.Equal(t, "1.5 kB", file["sizeHuman"])
}

func TestLevel_Summary(t *testing.T) {
	l := Project([]filestore.ObjectInfo{
		{Key: "a/x", Size: 100},
		{Key: "b.txt", Size: 10},
		{Key: "c.txt", Size: 5},
	}, "")
	assert.Equal(t, Summary{Folders: 1, Files: 2, Bytes: 15}, l.Summary())
}

// --- properties over generated listings ---

func randomListing(r *rand.Rand) []filestore.ObjectInfo {
	segs := []string{"a", "b", "c", "B", "x.txt", ""}
	seen := make(map[string]bool)
	var out []filestore.ObjectInfo
	for n := r.IntN(30); len(out) < n; {
		depth := 1 + r.IntN(4)
		parts := make([]string, depth)
		for i := range parts {
			parts[i] = segs[r.IntN(len(segs))]
		}
		key := strings.Join(parts, "/")
		if key == "" || strings.HasPrefix(key, "/") || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, obj(key))
	}
	return out
}

func randomPath(r *rand.Rand) string {
	paths := []string{"", "/", "a", "a/", "/a", "a/b", "/a/b/", "B", "a//", "c/x.txt"}
	return paths[r.IntN(len(paths))]
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 500; i++ {
		listing := randomListing(r)
		p := randomPath(r)
		name := fmt.Sprintf("case %d path %q", i, p)

		level := Project(listing, p)

		// Normalising first changes nothing.
		assert.Equal(t, level.Entries, Project(listing, keypath.Prefix(p)).Entries, name)

		// No duplicate names; folders precede files.
		byName := make(map[string]Entry)
		sawFile := false
		for _, e := range level.Entries {
			_, dup := byName[e.DisplayName()]
			assert.False(t, dup, name)
			byName[e.DisplayName()] = e
			if e.Kind() == KindFile {
				sawFile = true
			} else {
				assert.False(t, sawFile, "%s: folder after file", name)
			}
		}

		// Partition: every visible key is covered by exactly the entry named
		// after its first relative segment; nothing else appears.
		prefix := keypath.Prefix(p)
		covered := make(map[string]bool)
		for _, o := range listing {
			rel, ok := strings.CutPrefix(o.Key, prefix)
			if !ok {
				continue
			}
			head, deeper := keypath.SplitFirst(rel)
			if !deeper && head == "" {
				continue
			}
			e, ok := byName[head]
			if assert.True(t, ok, "%s: %q not covered", name, o.Key) {
				if deeper {
					assert.Equal(t, KindFolder, e.Kind(), name)
				}
			}
			covered[head] = true
		}
		assert.Len(t, covered, len(level.Entries), name)
	}
}

func TestProperty_RootCompleteness(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		listing := randomListing(r)
		level := Project(listing, "")

		var folders, files int
		for _, e := range level.Entries {
			if e.Kind() == KindFolder {
				folders++
			} else {
				files++
			}
		}

		tops := make(map[string]bool)
		for _, o := range listing {
			head, _ := keypath.SplitFirst(o.Key)
			tops[head] = true
		}
		assert.Equal(t, len(tops), folders+files)
	}
}

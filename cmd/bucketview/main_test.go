package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/bucketview/internal/browser"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/filestore/memory"
	"github.com/koustreak/bucketview/internal/hierarchy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPrintLevel(t *testing.T) {
	level := hierarchy.Project([]filestore.ObjectInfo{
		{Key: "images/2024/a.png", Size: 10},
		{Key: "images/readme.txt", Size: 1500, LastModified: now.Add(-2 * time.Hour)},
	}, "images")

	var buf bytes.Buffer
	printLevel(&buf, "media", level, now)
	assert.Equal(t, ""+
		"media / images\n"+
		"  2024/       -       -\n"+
		"  readme.txt  1.5 kB  2 hours ago\n"+
		"1 folders, 1 files, 1.5 kB\n", buf.String())
}

func TestPrintLevel_Empty(t *testing.T) {
	var buf bytes.Buffer
	printLevel(&buf, "media", hierarchy.Project(nil, ""), now)
	assert.Equal(t, "media\n  (empty)\n", buf.String())
}

func TestPrintFiles(t *testing.T) {
	var buf bytes.Buffer
	printFiles(&buf, nil, now)
	assert.Equal(t, "no matches\n", buf.String())

	buf.Reset()
	printFiles(&buf, []hierarchy.File{{Key: "a/b.txt", Size: 3}}, now)
	assert.Equal(t, "a/b.txt  3 B  -\n", buf.String())
}

// run executes the root command against an in-memory bucket.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"S3_PROVIDER", "S3_ENDPOINT", "S3_BUCKET", "ACTIVITY_DRIVER", "ACTIVITY_DSN", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)

	cfgPath := filepath.Join(dir, "bucketview.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  provider: memory\n  bucket: media\nlog:\n  level: off\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Ls(t *testing.T) {
	out, err := run(t, "ls", "docs")
	require.NoError(t, err)
	assert.Equal(t, "media / docs\n  (empty)\n", out)
}

func TestCLI_Put(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	out, err := run(t, "put", src, "/docs")
	require.NoError(t, err)
	assert.Equal(t, "uploaded docs/notes.txt (5 B)\n", out)
}

func TestCLI_Errors(t *testing.T) {
	_, err := run(t, "rm")
	assert.Error(t, err)

	_, err = run(t, "presign", "missing.txt")
	assert.Error(t, err)

	out, err := run(t, "find", "x")
	require.NoError(t, err)
	assert.Equal(t, "no matches\n", out)

	out, err = run(t, "activity")
	require.NoError(t, err)
	assert.Equal(t, "no activity recorded\n", out)

	out, err = run(t, "activity", "--action", "upload", "--key", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "no activity recorded\n", out)

	_, err = run(t, "get", "missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestCLI_Buckets(t *testing.T) {
	out, err := run(t, "buckets")
	require.NoError(t, err)
	assert.Contains(t, out, "* media")
}

func TestPrintBuckets(t *testing.T) {
	var buf bytes.Buffer
	printBuckets(&buf, "media", []filestore.BucketInfo{
		{Name: "archive"},
		{Name: "media", CreatedAt: now.Add(-48 * time.Hour)},
	}, now)
	assert.Equal(t, ""+
		"  archive  -\n"+
		"* media    2 days ago\n", buf.String())

	buf.Reset()
	printBuckets(&buf, "media", nil, now)
	assert.Equal(t, "no buckets visible\n", buf.String())
}

func TestDownload(t *testing.T) {
	mem := memory.New("media")
	mem.Seed("media", map[string][]byte{"docs/a.txt": []byte("hello"), "docs/": nil}, now)
	svc := browser.New(mem, browser.Options{Bucket: "media"})
	ctx := context.Background()
	dir := t.TempDir()

	dest := filepath.Join(dir, "a.txt")
	n, err := download(ctx, svc, "docs/a.txt", dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	var stdout bytes.Buffer
	_, err = download(ctx, svc, "docs/a.txt", "-", &stdout)
	require.NoError(t, err)
	assert.Equal(t, "hello", stdout.String())

	_, err = download(ctx, svc, "docs/", "", nil)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = download(ctx, svc, "docs/b.txt", filepath.Join(dir, "b.txt"), nil)
	assert.True(t, errs.IsNotFound(err))
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))
}

package attachments

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	disk, err := NewDiskStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := disk.Save(ctx, "board/a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, info, err := disk.Open(ctx, "board/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), info.Size)

	objects, err := disk.List(ctx, "board")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "board/a.txt", objects[0].Path)
}

func TestDiskStorageNeverOverwrites(t *testing.T) {
	disk, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = disk.Save(ctx, "board/a.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = disk.Save(ctx, "board/a.txt", strings.NewReader("second"))
	assert.ErrorIs(t, err, ErrObjectExists)

	rc, _, err := disk.Open(ctx, "board/a.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(data))
}

func TestDiskStorageRemoveIfExists(t *testing.T) {
	disk, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	removed, err := disk.Remove(ctx, "editor/missing.png")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = disk.Save(ctx, "editor/a.png", strings.NewReader("x"))
	require.NoError(t, err)
	removed, err = disk.Remove(ctx, "editor/a.png")
	require.NoError(t, err)
	assert.True(t, removed)

	_, _, err = disk.Open(ctx, "editor/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDiskStorageStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "uploads")
	disk, err := NewDiskStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	outside := filepath.Join(parent, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	_, err = disk.Remove(ctx, "../secret.txt")
	require.NoError(t, err)
	_, err = os.Stat(outside)
	assert.NoError(t, err, "cleaned path must resolve inside the root")

	_, err = disk.Save(ctx, "/", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestDiskStorageListMissingDir(t *testing.T) {
	disk, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)
	objects, err := disk.List(context.Background(), "board")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestCleanRelative(t *testing.T) {
	cases := map[string]bool{
		"editor/a.png":        true,
		"board/x.bin":         true,
		"editor/sub/a.png":    true,
		"editor/../board/x":   false,
		"../editor/a.png":     false,
		"editor\\a.png":       false,
		"misc/a.png":          false,
		"editor":              false,
		"":                    false,
		"editor/a.png\x00.js": false,
	}
	for in, ok := range cases {
		_, err := cleanRelative(in, "board", "editor")
		if ok {
			assert.NoError(t, err, in)
		} else {
			assert.ErrorIs(t, err, ErrUnsafePath, in)
		}
	}
}

func TestExtensionAndNames(t *testing.T) {
	assert.Equal(t, "png", Extension("Photo.PNG"))
	assert.Equal(t, "bin", Extension("README"))
	assert.Equal(t, "bin", Extension("weird.ex$e"))
	assert.Equal(t, "gz", Extension("archive.tar.gz"))
	assert.Equal(t, "unnamed", CleanOriginalName("../"))
	assert.Equal(t, "report.pdf", CleanOriginalName("/tmp/x/report.pdf"))
	assert.Equal(t, "text/plain", DetectMimeType("text/plain; charset=utf-8", "a.bin"))
	assert.Equal(t, "application/octet-stream", DetectMimeType("", "a"))
}

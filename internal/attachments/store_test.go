package attachments

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootboard/bootboard/internal/shared"
	_ "github.com/bootboard/bootboard/testing"
)

type storeFixture struct {
	store   *Store
	repo    *memoryRepo
	storage *flakyStorage
	counts  *removalCounts
	root    string
}

func newStoreFixture(t *testing.T, owners ownerMap) *storeFixture {
	t.Helper()
	root := t.TempDir()
	disk, err := NewDiskStorage(root)
	require.NoError(t, err)
	storage := &flakyStorage{Storage: disk, failRemove: map[string]bool{}}
	repo := newMemoryRepo()
	counts := newRemovalCounts()
	store := NewStore(StoreConfig{
		Storage:    storage,
		Repository: repo,
		Owners:     owners,
		Recorder:   counts,
	})
	return &storeFixture{store: store, repo: repo, storage: storage, counts: counts, root: root}
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func TestAttachSkipsEmptyUpload(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})

	record, err := f.store.Attach(context.Background(), 42, upload("empty.txt", ""))
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, f.storage.saves)
	assert.Equal(t, 0, f.repo.count(42))

	entries, _ := os.ReadDir(filepath.Join(f.root, "board"))
	assert.Empty(t, entries)
}

func TestAttachWritesFileThenRecords(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})

	record, err := f.store.Attach(context.Background(), 42, Upload{
		Filename:    `C:\Users\alice\보고서.PDF`,
		ContentType: "application/pdf",
		Size:        5,
		Content:     strings.NewReader("%PDF-"),
	})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, int64(42), record.BoardID)
	assert.Equal(t, "보고서.PDF", record.OriginalName)
	assert.Equal(t, "application/pdf", record.MimeType)
	assert.Equal(t, int64(5), record.SizeBytes)
	assert.True(t, strings.HasPrefix(record.StoredPath, "board/"))
	assert.True(t, strings.HasSuffix(record.StoredPath, ".pdf"))
	assert.NotContains(t, record.StoredPath, "보고서")

	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(record.StoredPath)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data))
	assert.Equal(t, 1, f.counts.stored["board"])
}

func TestAttachWithoutExtensionUsesFallback(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})

	record, err := f.store.Attach(context.Background(), 42, upload("Makefile", "all:"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(record.StoredPath, "."+FallbackExtension))
}

func TestAttachStoredNamesDoNotCollide(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})

	a, err := f.store.Attach(context.Background(), 42, upload("same.txt", "one"))
	require.NoError(t, err)
	b, err := f.store.Attach(context.Background(), 42, upload("same.txt", "two"))
	require.NoError(t, err)
	assert.NotEqual(t, a.StoredPath, b.StoredPath)
}

func TestAttachStorageFailureRecordsNothing(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	f.storage.failSave = errors.New("disk full at /srv/uploads/board")

	record, err := f.store.Attach(context.Background(), 42, upload("a.txt", "data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.Nil(t, record)
	assert.Equal(t, 0, f.repo.count(42))
}

func TestAttachRecordFailureRemovesWrittenFile(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	f.repo.insertErr = errors.New("insert failed")

	_, err := f.store.Attach(context.Background(), 42, upload("a.txt", "data"))
	require.Error(t, err)

	require.Len(t, f.storage.removes, 1)
	entries, err := os.ReadDir(filepath.Join(f.root, "board"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttachAllSkipsEmpties(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})

	out, err := f.store.AttachAll(context.Background(), 42, []Upload{
		upload("a.txt", "a"),
		upload("blank.txt", ""),
		upload("b.txt", "b"),
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, f.repo.count(42))
}

func TestDetachOnlyByAuthor(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	ctx := context.Background()

	first, err := f.store.Attach(ctx, 42, upload("one.txt", "1"))
	require.NoError(t, err)
	_, err = f.store.Attach(ctx, 42, upload("two.txt", "2"))
	require.NoError(t, err)
	require.Equal(t, 2, f.repo.count(42))

	err = f.store.Detach(ctx, first.ID, "bob")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, 2, f.repo.count(42))
	_, statErr := os.Stat(filepath.Join(f.root, filepath.FromSlash(first.StoredPath)))
	assert.NoError(t, statErr)

	require.NoError(t, f.store.Detach(ctx, first.ID, "alice"))
	assert.Equal(t, 1, f.repo.count(42))
	_, statErr = os.Stat(filepath.Join(f.root, filepath.FromSlash(first.StoredPath)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDetachMissingAttachment(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	assert.ErrorIs(t, f.store.Detach(context.Background(), 999, "alice"), shared.ErrNotFound)
}

func TestDetachSucceedsWhenFileRemovalFails(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	ctx := context.Background()
	record, err := f.store.Attach(ctx, 42, upload("one.txt", "1"))
	require.NoError(t, err)
	f.storage.failRemove[record.StoredPath] = true

	require.NoError(t, f.store.Detach(ctx, record.ID, "alice"))
	assert.Equal(t, 0, f.repo.count(42))
	assert.Equal(t, []string{record.StoredPath}, f.storage.removes)
	assert.Equal(t, 1, f.counts.result["error"])
}

func TestCascadeAttemptsEveryFile(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice", 43: "bob"})
	ctx := context.Background()

	var records []*Attachment
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		record, err := f.store.Attach(ctx, 42, upload(name, name))
		require.NoError(t, err)
		records = append(records, record)
	}
	other, err := f.store.Attach(ctx, 43, upload("keep.txt", "keep"))
	require.NoError(t, err)
	f.storage.failRemove[records[1].StoredPath] = true

	result, err := f.store.CascadeDeleteForOwner(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{Records: 5, Removed: 4, Failed: 1}, result)
	assert.Equal(t, 0, f.repo.count(42))
	assert.Equal(t, 1, f.repo.count(43))
	assert.Len(t, f.storage.removes, 5)

	for i, record := range records {
		_, statErr := os.Stat(filepath.Join(f.root, filepath.FromSlash(record.StoredPath)))
		if i == 1 {
			assert.NoError(t, statErr)
			continue
		}
		assert.True(t, os.IsNotExist(statErr), record.StoredPath)
	}
	_, statErr := os.Stat(filepath.Join(f.root, filepath.FromSlash(other.StoredPath)))
	assert.NoError(t, statErr)
}

func TestCascadeWithoutAttachments(t *testing.T) {
	f := newStoreFixture(t, ownerMap{42: "alice"})
	result, err := f.store.CascadeDeleteForOwner(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{}, result)
}

func TestStoreEditorImage(t *testing.T) {
	f := newStoreFixture(t, nil)
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))

	url, err := f.store.StoreEditorImage(context.Background(), Upload{
		Filename: "shot.png",
		Size:     int64(len(png)),
		Content:  bytes.NewReader(png),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/editor/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/"))))
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, 0, f.repo.count(0))
}

func TestStoreEditorImageRejectsNonImages(t *testing.T) {
	f := newStoreFixture(t, nil)

	_, err := f.store.StoreEditorImage(context.Background(), upload("evil.png", "<script>alert(1)</script>"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.store.StoreEditorImage(context.Background(), upload("empty.png", ""))
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, 0, f.storage.saves)
}

func TestRemoveFileIsIdempotentAndGuarded(t *testing.T) {
	f := newStoreFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "editor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "editor", "a.png"), []byte("x"), 0o644))

	require.NoError(t, f.store.RemoveFile(ctx, "editor/a.png"))
	require.NoError(t, f.store.RemoveFile(ctx, "editor/a.png"))
	assert.Equal(t, 1, f.counts.result["removed"])
	assert.Equal(t, 1, f.counts.result["absent"])

	outside := filepath.Join(filepath.Dir(f.root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	for _, bad := range []string{"../secret.txt", "editor/../../secret.txt", "other/a.png", "editor/", ""} {
		assert.ErrorIs(t, f.store.RemoveFile(ctx, bad), ErrUnsafePath, bad)
	}
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestOpenMapsMissingToNotFound(t *testing.T) {
	f := newStoreFixture(t, nil)
	_, _, err := f.store.Open(context.Background(), "board/missing.txt")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, _, err = f.store.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

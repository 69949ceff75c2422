package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootboard/bootboard/internal/attachments"
	_ "github.com/bootboard/bootboard/testing"
)

func TestNewStorageDisk(t *testing.T) {
	cfg := &Config{StorageDriver: "disk", UploadDir: t.TempDir()}
	storage, err := NewStorage(t.Context(), cfg)
	require.NoError(t, err)
	_, ok := storage.(*attachments.DiskStorage)
	require.True(t, ok)

	_, err = storage.Save(t.Context(), "board/a.txt", bytes.NewBufferString("hi"))
	require.NoError(t, err)
}

func TestNewStorageS3RequiresBucket(t *testing.T) {
	_, err := NewStorage(t.Context(), &Config{StorageDriver: "s3"})
	require.Error(t, err)
}

func TestNewAttachmentStoreUsesConfiguredDirs(t *testing.T) {
	cfg := &Config{UploadBoardPath: "/posts/", UploadEditorPath: "inline"}
	store := NewAttachmentStore(cfg, AttachmentDeps{})
	assert.Equal(t, "posts", store.BoardDir())
	assert.Equal(t, "inline", store.EditorDir())
	assert.Equal(t, "/uploads/inline/", store.EditorURLPrefix())
}

package app

import (
	"context"
	"log/slog"

	"github.com/bootboard/bootboard/internal/attachments"
)

// NewStorage selects the attachment backend named by STORAGE_DRIVER.
func NewStorage(ctx context.Context, cfg *Config) (attachments.Storage, error) {
	if cfg.UsesS3() {
		return attachments.NewS3Storage(ctx, attachments.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	}
	return attachments.NewDiskStorage(cfg.UploadDir)
}

// AttachmentDeps are the collaborators of the attachment store.
type AttachmentDeps struct {
	Storage    attachments.Storage
	Repository attachments.Repository
	Owners     attachments.OwnerLookup
	Recorder   attachments.Recorder
	Logger     *slog.Logger
}

// NewAttachmentStore builds the store with the configured subdirectories.
func NewAttachmentStore(cfg *Config, deps AttachmentDeps) *attachments.Store {
	return attachments.NewStore(attachments.StoreConfig{
		Storage:    deps.Storage,
		Repository: deps.Repository,
		Owners:     deps.Owners,
		Recorder:   deps.Recorder,
		Logger:     deps.Logger,
		BoardDir:   cfg.UploadBoardPath,
		EditorDir:  cfg.UploadEditorPath,
	})
}

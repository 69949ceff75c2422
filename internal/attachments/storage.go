package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage persists file bytes under relative slash-separated paths.
type Storage interface {
	// Save writes r to relPath and fails with ErrObjectExists if it is taken.
	Save(ctx context.Context, relPath string, r io.Reader) (int64, error)
	// Remove deletes relPath if it exists and reports whether it did.
	Remove(ctx context.Context, relPath string) (bool, error)
	// Open returns the object at relPath or ErrObjectNotFound.
	Open(ctx context.Context, relPath string) (io.ReadCloser, ObjectInfo, error)
	// List returns the objects directly under dir.
	List(ctx context.Context, dir string) ([]ObjectInfo, error)
}

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// DiskStorage stores files below a root directory.
type DiskStorage struct {
	root string
}

// NewDiskStorage returns a storage rooted at root. The directory is created
// lazily on first write.
func NewDiskStorage(root string) (*DiskStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("attachments: resolve upload root: %w", err)
	}
	return &DiskStorage{root: abs}, nil
}

// Root returns the absolute root directory.
func (d *DiskStorage) Root() string {
	return d.root
}

func (d *DiskStorage) resolve(relPath string) (string, error) {
	if relPath == "" || strings.ContainsRune(relPath, 0) {
		return "", ErrUnsafePath
	}
	cleaned := path.Clean("/" + filepath.ToSlash(relPath))
	full := filepath.Join(d.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return full, nil
}

// Save implements Storage.
func (d *DiskStorage) Save(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	full, err := d.resolve(relPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return 0, fmt.Errorf("attachments: create directory: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrObjectExists
		}
		return 0, fmt.Errorf("attachments: create file: %w", err)
	}
	n, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(full)
		return 0, fmt.Errorf("attachments: write file: %w", copyErr)
	}
	return n, nil
}

// Remove implements Storage.
func (d *DiskStorage) Remove(ctx context.Context, relPath string) (bool, error) {
	full, err := d.resolve(relPath)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("attachments: remove file: %w", err)
	}
	return true, nil
}

// Open implements Storage.
func (d *DiskStorage) Open(ctx context.Context, relPath string) (io.ReadCloser, ObjectInfo, error) {
	full, err := d.resolve(relPath)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("attachments: open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("attachments: stat file: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return f, ObjectInfo{Path: relPath, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// List implements Storage.
func (d *DiskStorage) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	full, err := d.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("attachments: list %s: %w", dir, err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ObjectInfo{
			Path:    path.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ Storage = (*DiskStorage)(nil)

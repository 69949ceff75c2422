// Package attachments tracks the files that belong to board posts and the
// editor images embedded in their content.
package attachments

import (
	"errors"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// PublicPrefix is the URL prefix under which stored files are served.
	PublicPrefix = "/uploads/"
	// FallbackExtension is used for uploads whose name has no usable extension.
	FallbackExtension = "bin"

	maxOriginalNameRunes = 255
	maxExtensionLen      = 16
	defaultMimeType      = "application/octet-stream"
)

var (
	// ErrObjectNotFound is returned by storage for missing objects.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectExists is returned by storage when a stored name is taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrUnsafePath is returned for paths that escape their namespace.
	ErrUnsafePath = errors.New("unsafe path")
)

// Attachment is the metadata row of one stored board file.
type Attachment struct {
	ID           int64     `json:"id"`
	BoardID      int64     `json:"boardId"`
	OriginalName string    `json:"originalName"`
	StoredPath   string    `json:"storedPath"`
	SizeBytes    int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StoredName returns the file name part of StoredPath.
func (a Attachment) StoredName() string {
	return path.Base(a.StoredPath)
}

// Upload is an incoming file. Size is the declared content length; zero
// marks an empty upload.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Empty reports whether the upload carries no bytes.
func (u Upload) Empty() bool {
	return u.Content == nil || u.Size == 0
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// CleanOriginalName reduces a client supplied file name to a normalised
// base name.
func CleanOriginalName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "unnamed"
	}
	if runes := []rune(name); len(runes) > maxOriginalNameRunes {
		name = string(runes[len(runes)-maxOriginalNameRunes:])
	}
	return name
}

// Extension returns the lower-cased extension of name without the dot, or
// FallbackExtension when there is none or it is not alphanumeric.
func Extension(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(CleanOriginalName(name)), ".")
	ext = strings.ToLower(ext)
	if ext == "" || len(ext) > maxExtensionLen {
		return FallbackExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return FallbackExtension
		}
	}
	return ext
}

// DetectMimeType prefers the declared type, then the extension.
func DetectMimeType(declared, name string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension("." + Extension(name)); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return defaultMimeType
}

// PublicURL maps a relative stored path to its public URL.
func PublicURL(relPath string) string {
	return PublicPrefix + strings.TrimPrefix(relPath, "/")
}

// cleanRelative validates that relPath stays inside one of the namespaces.
func cleanRelative(relPath string, namespaces ...string) (string, error) {
	if relPath == "" || strings.ContainsRune(relPath, 0) || strings.Contains(relPath, "\\") {
		return "", ErrUnsafePath
	}
	cleaned := path.Clean("/" + relPath)[1:]
	for _, segment := range strings.Split(relPath, "/") {
		if segment == ".." {
			return "", ErrUnsafePath
		}
	}
	for _, ns := range namespaces {
		if strings.HasPrefix(cleaned, ns+"/") && len(cleaned) > len(ns)+1 {
			return cleaned, nil
		}
	}
	return "", ErrUnsafePath
}

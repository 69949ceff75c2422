package attachments

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FileRemover deletes stored files with delete-if-exists semantics.
type FileRemover interface {
	RemoveFile(ctx context.Context, relPath string) error
}

// ReconcileRecorder counts reconciliation deletions.
type ReconcileRecorder interface {
	ReconcileRemoved(requested, failed int)
}

// Reconciler removes editor images that an edit dropped from content.
type Reconciler struct {
	remover   FileRemover
	logger    *slog.Logger
	recorder  ReconcileRecorder
	urlPrefix string
	namespace string
}

// NewReconciler builds a Reconciler for images under PublicPrefix+editorDir.
func NewReconciler(remover FileRemover, editorDir string, logger *slog.Logger, recorder ReconcileRecorder) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	editorDir = strings.Trim(editorDir, "/")
	if editorDir == "" {
		editorDir = "editor"
	}
	return &Reconciler{
		remover:   remover,
		logger:    logger,
		recorder:  recorder,
		urlPrefix: PublicPrefix + editorDir + "/",
		namespace: editorDir,
	}
}

// ExtractImagePaths returns the set of same-origin img src paths in content
// that fall under urlPrefix. Paths are cleaned before the prefix check, so
// "/uploads/editor/./a.png" and "/uploads/editor/a.png" are one entry.
// Query strings and fragments are dropped.
func ExtractImagePaths(content, urlPrefix string) map[string]struct{} {
	paths := make(map[string]struct{})
	if strings.TrimSpace(content) == "" {
		return paths
	}
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return paths
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.Img {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "src" {
					continue
				}
				if p, ok := imagePath(string(val), urlPrefix); ok {
					paths[p] = struct{}{}
				}
			}
		}
	}
}

// imagePath returns the cleaned path of src when it is a same-origin URL
// under urlPrefix.
func imagePath(src, urlPrefix string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	cleaned := path.Clean(u.Path)
	if !strings.HasPrefix(cleaned, urlPrefix) {
		return "", false
	}
	return cleaned, true
}

// Stale returns the image URLs referenced by oldContent but not by
// newContent, sorted.
func (r *Reconciler) Stale(oldContent, newContent string) []string {
	before := ExtractImagePaths(oldContent, r.urlPrefix)
	if len(before) == 0 {
		return nil
	}
	after := ExtractImagePaths(newContent, r.urlPrefix)
	var stale []string
	for p := range before {
		if _, kept := after[p]; !kept {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)
	return stale
}

// Reconcile deletes the files of editor images dropped between oldContent
// and newContent. Failures are logged and never returned. It returns the
// relative paths it asked the remover to delete.
func (r *Reconciler) Reconcile(ctx context.Context, oldContent, newContent string) []string {
	var requested []string
	failed := 0
	for _, src := range r.Stale(oldContent, newContent) {
		rel, ok := r.relative(src)
		if !ok {
			r.logger.Warn("skip unsafe image path", slog.String("src", src))
			continue
		}
		requested = append(requested, rel)
		if err := r.remover.RemoveFile(ctx, rel); err != nil {
			failed++
			r.logger.Warn("remove stale editor image", slog.String("path", rel), slog.Any("error", err))
		}
	}
	if r.recorder != nil && len(requested) > 0 {
		r.recorder.ReconcileRemoved(len(requested), failed)
	}
	return requested
}

// relative maps /uploads/editor/a.png to editor/a.png, rejecting anything
// that leaves the editor namespace once cleaned.
func (r *Reconciler) relative(src string) (string, bool) {
	rel := strings.TrimPrefix(src, PublicPrefix)
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", false
		}
	}
	cleaned := path.Clean(rel)
	if !strings.HasPrefix(cleaned, r.namespace+"/") || cleaned == r.namespace+"/" {
		return "", false
	}
	return cleaned, true
}

package attachments

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bootboard/bootboard/internal/platform/httpx"
	"github.com/bootboard/bootboard/internal/shared"
)

// Handler serves editor image uploads and file downloads.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	maxBytes int64
}

// NewHandler constructs a Handler. maxBytes bounds upload request bodies.
func NewHandler(logger *slog.Logger, store *Store, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{logger: logger, store: store, maxBytes: maxBytes}
}

// MountRoutes registers /api/files routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/upload/image", h.uploadImage)
	r.Get("/download/{storedName}", h.download)
}

// MountUploads registers the raw file routes served under /uploads.
func (h *Handler) MountUploads(r chi.Router) {
	r.Get("/*", h.serveUpload)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{"image": "must not be empty"}))
		return
	}
	defer file.Close()

	imageURL, err := h.store.StoreEditorImage(r.Context(), Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": imageURL})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	storedName := chi.URLParam(r, "storedName")
	if storedName == "" || strings.ContainsAny(storedName, `/\`) {
		httpx.RespondError(w, h.logger, shared.ErrNotFound)
		return
	}
	rc, info, err := h.store.Open(r.Context(), h.store.BoardFilePath(storedName))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	defer rc.Close()

	name := CleanOriginalName(r.URL.Query().Get("originName"))
	if r.URL.Query().Get("originName") == "" {
		name = storedName
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", slog.String("file", storedName), slog.Any("error", err))
	}
}

func (h *Handler) serveUpload(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	rc, info, err := h.store.Open(r.Context(), rel)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(rel))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'")
	if !h.servesInline(rel, ctype) {
		w.Header().Set("Content-Disposition", "attachment")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("serve upload interrupted", slog.String("path", rel), slog.Any("error", err))
	}
}

// inlineImageTypes are the raster formats rendered in place. Scriptable
// types such as SVG are always downloaded.
var inlineImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/avif": true,
}

// servesInline reports whether rel is an editor image safe to render in
// place. Board attachments are always downloads.
func (h *Handler) servesInline(rel, ctype string) bool {
	if !strings.HasPrefix(path.Clean(rel), h.store.EditorDir()+"/") {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ctype)
	return err == nil && inlineImageTypes[mediaType]
}

// contentDisposition builds an attachment header carrying both an ASCII
// fallback and the RFC 5987 UTF-8 name.
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	encoded := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + encoded
}

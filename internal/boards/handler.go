package boards

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/platform/httpx"
	"github.com/bootboard/bootboard/internal/rbac"
	"github.com/bootboard/bootboard/internal/shared"
)

// Handler exposes board endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	maxBytes  int64
}

// NewHandler builds Handler instance. maxBytes bounds request bodies.
func NewHandler(logger *slog.Logger, service *Service, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), maxBytes: maxBytes}
}

// MountRoutes registers board routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.detail)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Delete("/files/{fileId}", h.deleteFile)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	size, _ := strconv.Atoi(query.Get("size"))
	if page < 0 {
		page = 0
	}
	out, err := h.service.List(r.Context(), ListQuery{
		Keyword: query.Get("keyword"),
		Page:    page + 1,
		Size:    size,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	form, err := h.readForm(w, r)
	if err != nil {
		h.respondFormError(w, err)
		return
	}
	defer form.close()

	id, err := h.service.Create(r.Context(), actor, form.input, form.uploads)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	form, err := h.readForm(w, r)
	if err != nil {
		h.respondFormError(w, err)
		return
	}
	defer form.close()

	if err := h.service.Update(r.Context(), actor, id, form.input, form.uploads); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	fileID, ok := h.pathID(w, r, "fileId")
	if !ok {
		return
	}
	if err := h.service.DeleteAttachment(r.Context(), actor, fileID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{key: "must be a number"}))
		return 0, false
	}
	return id, true
}

var errMalformedBoard = errors.New("malformed board payload")

type boardForm struct {
	input   Input
	uploads []attachments.Upload
	files   []multipart.File
	form    *multipart.Form
}

func (f *boardForm) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

// readForm accepts either multipart/form-data with a JSON "board" part and
// optional "files" parts, or a plain JSON body.
func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (*boardForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	out := &boardForm{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&out.input); err != nil {
			return nil, bodyError(err)
		}
		return out, h.validate(&out.input)
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		return nil, bodyError(err)
	}
	out.form = r.MultipartForm
	raw, err := boardPart(r.MultipartForm)
	if err != nil {
		out.close()
		return nil, err
	}
	if err := json.Unmarshal(raw, &out.input); err != nil {
		out.close()
		return nil, errMalformedBoard
	}
	if err := h.validate(&out.input); err != nil {
		out.close()
		return nil, err
	}
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			out.close()
			return nil, errMalformedBoard
		}
		out.files = append(out.files, file)
		out.uploads = append(out.uploads, attachments.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     file,
		})
	}
	return out, nil
}

// boardPart returns the JSON "board" part, sent either as a field or as a
// file part with an application/json content type.
func boardPart(form *multipart.Form) ([]byte, error) {
	if values := form.Value["board"]; len(values) > 0 {
		return []byte(values[0]), nil
	}
	headers := form.File["board"]
	if len(headers) == 0 {
		return nil, shared.NewValidationError(map[string]string{"board": "must not be empty"})
	}
	file, err := headers[0].Open()
	if err != nil {
		return nil, errMalformedBoard
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, errMalformedBoard
	}
	return raw, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return errMalformedBoard
}

func (h *Handler) validate(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := h.validator.Struct(in); err != nil {
		return shared.NewValidationError(httpx.FieldErrors(err))
	}
	return nil
}

func (h *Handler) respondFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body exceeds the upload limit")
	case errors.Is(err, errMalformedBoard):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		httpx.RespondError(w, h.logger, err)
	}
}

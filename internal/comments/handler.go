package comments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bootboard/bootboard/internal/platform/httpx"
	"github.com/bootboard/bootboard/internal/rbac"
	"github.com/bootboard/bootboard/internal/shared"
)

// Handler exposes comment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers comment routes. POST takes a board id, DELETE a
// comment id.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{id}", h.create)
	r.Delete("/{id}", h.delete)
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	boardID, err := strconv.ParseInt(r.URL.Query().Get("boardId"), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{"boardId": "must be a number"}))
		return
	}
	out, err := h.service.ListByBoard(r.Context(), boardID)
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
	boardID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(httpx.FieldErrors(err)))
		return
	}
	comment, err := h.service.Create(r.Context(), actor, boardID, req.Content)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": comment.ID})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{"id": "must be a number"}))
		return 0, false
	}
	return id, true
}

package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/platform/httpx"
	"github.com/bootboard/bootboard/internal/rbac"
	"github.com/bootboard/bootboard/internal/shared"
)

// Handler manages member administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireRole(auth.RoleAdmin))
		r.Get("/members", h.listMembers)
		r.Post("/members/{id}/role", h.changeRole)
	})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, err := rbac.CurrentIdentity(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{"id": "must be a number"}))
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 256))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
		return
	}
	role, err := auth.ParseRole(decodeRoleBody(raw))
	if err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(map[string]string{"role": "must be one of USER ADMIN"}))
		return
	}
	member, err := h.service.ChangeRole(r.Context(), actor, id, role)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

// decodeRoleBody accepts a bare role, a JSON string, or {"role": "..."}.
func decodeRoleBody(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	var asString string
	if err := json.Unmarshal([]byte(trimmed), &asString); err == nil {
		return asString
	}
	var asObject struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal([]byte(trimmed), &asObject); err == nil && asObject.Role != "" {
		return asObject.Role
	}
	return trimmed
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/boards"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/observability"
	"github.com/bootboard/bootboard/internal/rbac"
	"github.com/bootboard/bootboard/internal/users"
	"github.com/bootboard/bootboard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Gate            *rbac.Gate
	AuthHandler     *auth.Handler
	BoardsHandler   *boards.Handler
	CommentsHandler *comments.Handler
	FilesHandler    *attachments.Handler
	UsersHandler    *users.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with bootboard defaults. Every route
// sits behind the access gate; the gate's rule table decides which of them
// are public.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	if params.Gate != nil {
		r.Use(params.Gate.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.BoardsHandler != nil {
			r.Route("/boards", params.BoardsHandler.MountRoutes)
		}
		if params.CommentsHandler != nil {
			r.Route("/comments", params.CommentsHandler.MountRoutes)
		}
		if params.FilesHandler != nil {
			r.Route("/files", params.FilesHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	if params.FilesHandler != nil {
		r.Route("/uploads", params.FilesHandler.MountUploads)
	}

	return r
}

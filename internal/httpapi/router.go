package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"driftcast/internal/dispatch"
	"driftcast/internal/httpapi/handlers"
	"driftcast/internal/httpapi/util"
	"driftcast/internal/httpkit"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/pkg/middleware"
	"driftcast/internal/ports"
	"driftcast/internal/store"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	Storage   ports.RemoteStorage
	Store     *store.Store
	Trigger   *dispatch.Trigger
	LeaseName string
	Log       *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := util.EnvCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Pool:      d.Pool,
		RDB:       d.RDB,
		Storage:   d.Storage,
		Store:     d.Store,
		Trigger:   d.Trigger,
		LeaseName: d.LeaseName,
		Log:       d.Log,
	})

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/render-jobs", h.PostRenderJob)
		r.Get("/render-jobs", h.ListRenderJobs)
		r.Get("/render-jobs/{jobID}", h.GetRenderJob)

		r.Post("/upload-jobs", h.PostUploadJob)
		r.Get("/upload-jobs/{jobID}", h.GetUploadJob)

		r.Post("/tasks/trigger", h.PostTrigger)
	})

	return r
}

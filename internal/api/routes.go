// Package api assembles the HTTP surface: chi router, middleware and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/ifcglb/internal/api/middleware"
	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
)

// Deps are the services and settings NewRouter wires into handlers.
type Deps struct {
	Conversions  *conversion.Service
	Convert      handlers.ConvertConfig
	Auth         apmiddleware.AuthConfig
	NativeLoaded func() bool
	Log          *zap.Logger
}

// NewRouter creates and configures a new chi router with all routes.
//
// Public: GET /health. Protected when auth is configured: POST /convert and
// the /conversions history.
func NewRouter(deps Deps) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.Recoverer(log))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// ===== PUBLIC ROUTES (no auth required) =====

	healthHandler := handlers.NewHealthHandler(deps.Conversions.ConverterName(), deps.NativeLoaded)
	r.With(apmiddleware.AccessLog(log)).Get("/health", healthHandler.Health)

	// ===== PROTECTED ROUTES =====

	convertHandler := handlers.NewConvertHandler(deps.Conversions, deps.Convert, log)
	conversionHandler := handlers.NewConversionHandler(deps.Conversions, log)

	r.Group(func(r chi.Router) {
		r.Use(apmiddleware.Auth(deps.Auth))
		r.Use(apmiddleware.AccessLog(log))

		r.Post("/convert", convertHandler.Convert) // POST /convert
		r.Route("/conversions", func(r chi.Router) {
			r.Get("/", conversionHandler.ListConversions)     // GET /conversions
			r.Get("/{id}", conversionHandler.GetConversion)   // GET /conversions/{id}
			r.Get("/{id}/glb", conversionHandler.DownloadGLB) // GET /conversions/{id}/glb
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not_found","message":"No such route."}`)) //nolint:errcheck
	})

	return r
}

package handler

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP layer is wired to.
type Dependencies struct {
	Endpoints EndpointService
	Templates TemplateRenderer
	Methods   MethodLister
	Requests  RequestLog
	History   HistoryReader // nil when the archive is disabled
	Proxy     HTTPProxyService
	Auth      TokenValidator // nil when the management API is open

	// MockSurface serves everything under MockPrefix, with the prefix already
	// stripped.
	MockSurface http.Handler
	MockPrefix  string
	Live        http.Handler
	Routes      RouteCounter
	Observers   Counter
	DB          *sql.DB

	AllowedOrigins []string
	MaxBodyBytes   int64
}

// SetupRouter creates the main Chi router for the application.
func SetupRouter(d Dependencies, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Standard Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	// Recoverer: Recovers from panics and returns a 500 error instead of crashing.
	r.Use(middleware.Recoverer)

	// --- CORS Middleware ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browser
	}))
	if d.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(d.MaxBodyBytes))
	}

	// --- Route Definitions ---
	healthHandler := NewHealthHandler(d.DB, d.Endpoints, d.Routes, d.Observers, logger)
	endpointHandler := NewEndpointHandler(d.Endpoints, logger)
	templateHandler := NewTemplateHandler(d.Templates, d.Methods, logger)
	requestHandler := NewRequestHandler(d.Requests, d.History, logger)
	httpProxyHandler := NewHTTPProxyHandler(d.Proxy, logger)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(NewAuthMiddleware(d.Auth, logger).Authenticate)
		}

		r.Route("/endpoints", func(r chi.Router) {
			r.Get("/", endpointHandler.List)
			r.Post("/", endpointHandler.Create)
			r.Post("/import", endpointHandler.Import)
			r.Get("/export", endpointHandler.Export)
			r.Get("/{id}", endpointHandler.Get)
			r.Put("/{id}", endpointHandler.Update)
			r.Delete("/{id}", endpointHandler.Delete)
			r.Post("/{id}/toggle", endpointHandler.Toggle)
		})

		r.Post("/faker/preview", templateHandler.Preview)
		r.Get("/faker/methods", templateHandler.Methods)

		r.Get("/logs", requestHandler.List)
		r.Delete("/logs", requestHandler.Clear)
		r.Get("/logs/history", requestHandler.History)

		r.Mount("/proxy", httpProxyHandler)
	})

	if d.Live != nil {
		r.Handle("/ws", d.Live)
	}

	r.Mount(d.MockPrefix, http.StripPrefix(d.MockPrefix, d.MockSurface))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found")
	})

	return r
}

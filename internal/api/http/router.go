package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/avolkov/tinyurl/internal/models"

	_ "github.com/avolkov/tinyurl/docs"
)

// URLService defines the interface for the core URL registry the handlers
// sit in front of.
type URLService interface {
	// ShortenURL registers rawURL and returns its record. The bool reports
	// whether a new record was created (false when an equivalent URL was
	// already registered).
	ShortenURL(ctx context.Context, rawURL string, expiresAt *time.Time) (*models.ShortURL, bool, error)

	// ResolveSlug returns the redirect target for slug, recording one access
	// event. It fails for unknown and expired slugs.
	ResolveSlug(ctx context.Context, slug string) (*models.ShortURL, error)

	// GetURLStats returns the record for slug with its ordered access times.
	GetURLStats(ctx context.Context, slug string) (*models.ShortURLStats, error)

	// ListURLs returns all short URL records.
	ListURLs(ctx context.Context) ([]models.ShortURL, error)

	// DeleteURL removes the record for slug and returns it.
	DeleteURL(ctx context.Context, slug string) (*models.ShortURL, error)
}

// Pinger reports whether the store behind the service is reachable. The
// readiness probe depends on it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// getValidate initializes the validator used for request payloads, reporting
// field names by their JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes the HTTP router with all routes and middleware
// configured. baseURL, when non-empty, is used to build the absolute links
// embedded in responses; otherwise they are derived from the request host.
func NewRouter(logger *httplog.Logger, urlSvc URLService, db Pinger, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(db))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/urls", func(r chi.Router) {
		r.Post("/", handleCreateURL(urlSvc, validate, baseURL))
		r.Get("/", handleListURLs(urlSvc))

		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", handleGetURLStats(urlSvc, baseURL))
			r.Delete("/", handleDeleteURL(urlSvc))
		})
	})

	r.Get("/{slug}", handleRedirect(urlSvc))

	return r
}

package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/avolkov/tinyurl/internal/database"
	"github.com/avolkov/tinyurl/internal/models"
	"github.com/avolkov/tinyurl/internal/service"
	"github.com/avolkov/tinyurl/internal/shortener"
	"github.com/avolkov/tinyurl/pkg/response"
)

// createURLRequest is the payload for registering a URL. The URL itself is
// validated by the normalizer, not here, so that bare "host/path" input is
// accepted.
type createURLRequest struct {
	URL        string `json:"url" validate:"required"`
	ExpiryDate string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// urlLinks embeds the absolute URLs a client needs to use a short URL.
type urlLinks struct {
	Redirect string `json:"redirect"`
	Stats    string `json:"stats"`
	Delete   string `json:"delete"`
}

type createURLResponse struct {
	URL   string   `json:"url"`
	Links urlLinks `json:"links"`
}

type urlResponse struct {
	ID           int64      `json:"id"`
	Slug         string     `json:"slug"`
	CanonicalURL string     `json:"canonical_url"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type urlStatsResponse struct {
	TinyURL      string      `json:"tinyurl"`
	CanonicalURL string      `json:"canonical_url"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	AccessedAt   []time.Time `json:"accessed_at"`
}

type deleteURLResponse struct {
	TinyURL urlResponse `json:"tinyurl"`
	Deleted bool        `json:"deleted"`
}

func toURLResponse(url *models.ShortURL) urlResponse {
	return urlResponse{
		ID:           url.ID,
		Slug:         url.Slug,
		CanonicalURL: url.CanonicalURL,
		CreatedAt:    url.CreatedAt,
		ExpiresAt:    url.ExpiresAt,
	}
}

// requestBaseURL picks the base for absolute links: the configured base URL
// when set, the serving host otherwise.
func requestBaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + r.Host
}

func linksFor(r *http.Request, configured, slug string) urlLinks {
	base := requestBaseURL(r, configured)

	return urlLinks{
		Redirect: base + "/" + slug,
		Stats:    base + "/urls/" + slug,
		Delete:   base + "/urls/" + slug,
	}
}

// handleHealthz godoc
//
//	@Summary	Health check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleReadyz godoc
//
//	@Summary	Readiness check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]bool
//	@Failure	500	{object}	response.Response
//	@Router		/readyz [get]
func handleReadyz(db Pinger) http.HandlerFunc {
	const op = "api.http.handleReadyz"

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]bool{"ready": false, "db": false})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]bool{"ready": true, "db": true})
	}
}

// handleCreateURL godoc
//
//	@Summary	Shorten a URL
//	@Tags		urls
//	@Accept		json
//	@Produce	json
//	@Param		body	body		createURLRequest	true	"URL to shorten with optional RFC 3339 expiry"
//	@Success	201		{object}	response.Response{data=createURLResponse}	"created"
//	@Success	200		{object}	response.Response{data=createURLResponse}	"already existed"
//	@Failure	400		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/urls [post]
func handleCreateURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateURL"
	const createdMsg = "The URL has been shortened successfully."
	const existsMsg = "The URL was already shortened."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		var expiresAt *time.Time
		if req.ExpiryDate != "" {
			t, err := time.Parse(time.RFC3339, req.ExpiryDate)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}
			expiresAt = &t
		}

		url, created, err := svc.ShortenURL(r.Context(), req.URL, expiresAt)
		if err != nil {
			if errors.Is(err, shortener.ErrInvalidURL) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		links := linksFor(r, baseURL, url.Slug)
		data := createURLResponse{
			URL:   links.Redirect,
			Links: links,
		}

		msg := createdMsg
		status := http.StatusCreated
		if !created {
			msg = existsMsg
			status = http.StatusOK
		}

		render.Status(r, status)
		render.JSON(w, r, response.SuccessResponse(msg, data))
	}
}

// handleGetURLStats godoc
//
//	@Summary	Get short URL stats
//	@Tags		urls
//	@Produce	json
//	@Param		slug	path		string	true	"Slug"
//	@Success	200		{object}	response.Response{data=urlStatsResponse}
//	@Failure	404		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/urls/{slug} [get]
func handleGetURLStats(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		stats, err := svc.GetURLStats(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := urlStatsResponse{
			TinyURL:      requestBaseURL(r, baseURL) + "/" + stats.Slug,
			CanonicalURL: stats.CanonicalURL,
			CreatedAt:    stats.CreatedAt,
			ExpiresAt:    stats.ExpiresAt,
			AccessedAt:   stats.AccessedAt,
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleListURLs godoc
//
//	@Summary	List all short URLs
//	@Tags		urls
//	@Produce	json
//	@Success	200	{object}	response.Response{data=[]urlResponse}
//	@Failure	500	{object}	response.Response
//	@Router		/urls [get]
func handleListURLs(svc URLService) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "The URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := svc.ListURLs(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for i := range urls {
			data = append(data, toURLResponse(&urls[i]))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleDeleteURL godoc
//
//	@Summary	Delete a short URL
//	@Tags		urls
//	@Produce	json
//	@Param		slug	path		string	true	"Slug"
//	@Success	200		{object}	response.Response{data=deleteURLResponse}
//	@Failure	404		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/urls/{slug} [delete]
func handleDeleteURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"
	const successMsg = "The URL was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		url, err := svc.DeleteURL(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := deleteURLResponse{
			TinyURL: toURLResponse(url),
			Deleted: true,
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleRedirect godoc
//
//	@Summary	Redirect to the original URL
//	@Tags		urls
//	@Produce	json
//	@Param		slug	path	string	true	"Slug"
//	@Success	302
//	@Failure	404	{object}	response.Response
//	@Failure	410	{object}	response.Response
//	@Failure	500	{object}	response.Response
//	@Router		/{slug} [get]
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		url, err := svc.ResolveSlug(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			if errors.Is(err, service.ErrURLExpired) {
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, url.CanonicalURL, http.StatusFound)
	}
}

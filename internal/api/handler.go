// Package api is the HTTP surface over the session service: submit a
// guidance query, read the last response, stream status events, search
// products, and inspect system status. Presentation code talks to this
// package and the MCP server only; connection, retry, and cache internals
// stay behind the session service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/leafwise/budtender/internal/conn"
	"github.com/leafwise/budtender/internal/metrics"
	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/session"
)

const maxRequestBodySize = 64 << 10 // 64KB; a guidance query is short

// sessionHeader carries the client's session identity. Absent on a submit,
// the server mints one and returns it in the ticket.
const sessionHeader = "X-Session-ID"

// ProductSearcher is the direct product-search surface (no generation).
type ProductSearcher interface {
	Search(ctx context.Context, query string, level products.ExperienceLevel) []products.Product
}

// EndpointStatus reports current backend endpoint state.
type EndpointStatus interface {
	Current() conn.Endpoint
}

// CatalogCounter reports how many catalog items are stored. Optional.
type CatalogCounter interface {
	CountItems() (int, error)
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Sessions *session.Service
	Search   ProductSearcher
	Endpoint EndpointStatus
	Catalog  CatalogCounter // nil when no embedded store is configured
	Model    string

	RateLimitRPS   float64
	RateLimitBurst int
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(newIPRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst).middleware)

		r.Post("/guidance", handleSubmit(deps, validate))
		r.Get("/guidance/last", handleReadLast(deps))
		r.Get("/guidance/{sessionID}/events", handleEvents(deps))
		r.Get("/products/search", handleProductSearch(deps))
		r.Get("/status", handleStatus(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// submitRequest is the POST /api/guidance body.
type submitRequest struct {
	Query           string `json:"query" validate:"required,min=3,max=500"`
	ExperienceLevel string `json:"experience_level" validate:"omitempty,oneof=new casual experienced"`
}

func handleSubmit(deps Deps, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: %v", err)
			return
		}

		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		ticket, err := deps.Sessions.Submit(r.Context(), sessionID,
			req.Query, products.ParseExperienceLevel(req.ExperienceLevel))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(ticket)
	}
}

func handleReadLast(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			sessionID = r.URL.Query().Get("session_id")
		}
		if sessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session id is required")
			return
		}

		resp, ok := deps.Sessions.ReadLast(r.Context(), sessionID)
		if !ok {
			// Nothing cached (or evicted as invalid): the client must
			// submit a fresh request.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleProductSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		level := products.ParseExperienceLevel(r.URL.Query().Get("level"))

		found := deps.Search.Search(r.Context(), query, level)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"query":    query,
			"level":    level,
			"products": found,
		})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ep := deps.Endpoint.Current()
		status := map[string]any{
			"model": deps.Model,
			"endpoint": map[string]any{
				"url":        ep.BaseURL,
				"live":       ep.Live,
				"checked_at": ep.CheckedAt.Format(time.RFC3339),
			},
		}
		if deps.Catalog != nil {
			if n, err := deps.Catalog.CountItems(); err == nil {
				status["catalog_items"] = n
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

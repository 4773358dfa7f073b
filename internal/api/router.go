package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/taxonomy"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *postservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Posts.
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/*", h.GetPost)

	// Taxonomies.
	for _, f := range taxonomy.Fields {
		r.Route("/"+string(f), func(r chi.Router) {
			r.Get("/", h.Taxonomy(f))
			r.Get("/suggest", h.Suggest(f))
			r.Get("/counts", h.TermCounts(f))
			r.Get("/{id}", h.Group(f))
		})
	}

	// Search.
	r.Get("/search", h.Search)

	r.Post("/rebuild", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

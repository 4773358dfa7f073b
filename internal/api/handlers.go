package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/taxonomy"
)

const defaultSuggestLimit = 10

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// postURL extracts the post URL from the request (everything after /api/posts/).
// Both the published URL ("posts/go/intro.html") and the source path
// ("posts/go/intro.md") are accepted; encoded slashes are decoded.
func postURL(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	if strings.HasSuffix(raw, ".md") {
		return content.URLFor(raw)
	}
	return "/" + raw
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts newest first with optional pagination and filtering
//	@Tags			posts
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			tag			query		string	false	"Filter by tag label"
//	@Param			category	query		string	false	"Filter by category label"
//	@Success		200			{object}	PostListResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPosts(r.Context(), limit, offset, q.Get("tag"), q.Get("category"))
	if err != nil {
		writeInternal(w, "list posts failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: items, Total: total})
}

// GetPost handles GET /api/posts/*.
//
//	@Summary		Get a single post by URL or source path
//	@Tags			posts
//	@Produce		json
//	@Param			path	path		string	true	"Post URL or path"
//	@Success		200		{object}	PostDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{path} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	u := postURL(r)
	if u == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	post, err := h.svc.GetPost(r.Context(), u)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			writeInternal(w, "get post failed", err, slog.String("url", u))
		}
		return
	}
	w.Header().Set("ETag", strconv.Quote(post.Checksum))
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Scaffold a new post
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	PostDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	post, err := h.svc.CreatePost(r.Context(), scaffold.Options{
		Path:    req.Path,
		Title:   req.Title,
		Desc:    req.Desc,
		Tags:    req.Tags,
		Outline: req.Outline,
		Force:   req.Force,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "post already exists")
		case errors.Is(err, apperr.ErrInvalidPath):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeInternal(w, "create post failed", err, slog.String("path", req.Path))
		}
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Taxonomy returns the handler for GET /api/{field}.
//
//	@Summary		List every group of a taxonomy field
//	@Tags			taxonomy
//	@Produce		json
//	@Param			If-None-Match	header		string	false	"Snapshot version from a previous ETag"
//	@Success		200				{object}	TaxonomyResponse
//	@Success		304				"Not modified"
//	@Security		BearerAuth
//	@Router			/tags [get]
//	@Router			/categories [get]
func (h *Handler) Taxonomy(field taxonomy.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := h.svc.Version()
		etag := strconv.Quote(version)
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && (match == etag || match == "*") {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, http.StatusOK, TaxonomyResponse{
			Field:   string(field),
			Version: version,
			Groups:  h.svc.Taxonomy(r.Context(), field),
		})
	}
}

// Group returns the handler for GET /api/{field}/{id}.
//
//	@Summary		Get one taxonomy group by id
//	@Tags			taxonomy
//	@Produce		json
//	@Param			id	path		string	true	"Group id"
//	@Success		200	{object}	GroupSummary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [get]
//	@Router			/categories/{id} [get]
func (h *Handler) Group(field taxonomy.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var (
			g   *postservice.GroupSummary
			err error
		)
		for _, candidate := range groupIDCandidates(id) {
			g, err = h.svc.Group(r.Context(), field, candidate)
			if !errors.Is(err, apperr.ErrNotFound) {
				break
			}
		}
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
			} else {
				writeInternal(w, "get group failed", err, slog.String("field", string(field)), slog.String("id", id))
			}
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// Suggest returns the handler for GET /api/{field}/suggest.
//
//	@Summary		Suggest taxonomy groups by id prefix
//	@Tags			taxonomy
//	@Produce		json
//	@Param			q		query		string	false	"Label or id prefix"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SuggestResponse
//	@Security		BearerAuth
//	@Router			/tags/suggest [get]
//	@Router			/categories/suggest [get]
func (h *Handler) Suggest(field taxonomy.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultSuggestLimit
		}
		writeJSON(w, http.StatusOK, SuggestResponse{
			Groups: h.svc.Suggest(r.Context(), field, q.Get("q"), limit),
		})
	}
}

// TermCounts returns the handler for GET /api/{field}/counts.
//
//	@Summary		Per-label post counts from the search index
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	TermCountsResponse
//	@Security		BearerAuth
//	@Router			/tags/counts [get]
//	@Router			/categories/counts [get]
func (h *Handler) TermCounts(field taxonomy.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := h.svc.TermCounts(r.Context(), field)
		if err != nil {
			writeInternal(w, "term counts failed", err, slog.String("field", string(field)))
			return
		}
		writeJSON(w, http.StatusOK, TermCountsResponse{Counts: counts})
	}
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across posts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeInternal(w, "search failed", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary		Re-sync the index and reload every post
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rebuild(r.Context()); err != nil {
		writeInternal(w, "rebuild failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Version: h.svc.Version()})
}

// groupIDCandidates lists the spellings of a routed id to look up, exact
// first. chi routes on the escaped path when the request carried escapes
// that differ from the default encoding (such as %2F), and on the decoded
// path otherwise, so ids produced by the percent-encoded slug fallback may
// arrive in either form.
func groupIDCandidates(id string) []string {
	out := []string{id}
	if decoded, err := url.PathUnescape(id); err == nil && decoded != id {
		out = append(out, decoded)
	}
	if escaped := url.PathEscape(id); escaped != id {
		out = append(out, escaped)
	}
	return out
}

package api

import (
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/postservice"
)

// CreatePostRequest is the request body for scaffolding a post.
type CreatePostRequest struct {
	Path    string `json:"path" example:"go/generics" validate:"required"`
	Title   string `json:"title,omitempty" example:"Generics"`
	Desc    string `json:"desc,omitempty" example:"Type parameters in practice"`
	Tags    string `json:"tags,omitempty" example:"go, generics"`
	Outline string `json:"outline,omitempty" example:"deep"`
	Force   bool   `json:"force,omitempty"`
}

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = postservice.PostDetail

// PostListItem is a lightweight item in a list response (aliased from the domain layer).
type PostListItem = postservice.PostListItem

// GroupSummary is a taxonomy group (aliased from the domain layer).
type GroupSummary = postservice.GroupSummary

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Posts []PostListItem `json:"posts" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TaxonomyResponse wraps the groups of one field.
type TaxonomyResponse struct {
	Field   string         `json:"field" example:"tags" validate:"required"`
	Version string         `json:"version" example:"9f86d081884c7d65" validate:"required"`
	Groups  []GroupSummary `json:"groups" validate:"required"`
}

// SuggestResponse wraps groups matching an id prefix.
type SuggestResponse struct {
	Groups []GroupSummary `json:"groups" validate:"required"`
}

// TermCountsResponse wraps per-label counts read from the search index.
type TermCountsResponse struct {
	Counts []index.TermCount `json:"counts" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// RebuildResponse reports the snapshot version after a rebuild.
type RebuildResponse struct {
	Version string `json:"version" example:"9f86d081884c7d65" validate:"required"`
}

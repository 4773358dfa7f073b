// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/taxonomy"
)

// PostFormatURI is the resource URI of the post format contract.
const PostFormatURI = "folio://post-format"

const searchLimit = 20

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all Folio tools registered.
func New(svc *postservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	fieldArg := mcp.WithString("field",
		mcp.Required(),
		mcp.Enum(string(taxonomy.Tags), string(taxonomy.Categories)),
		mcp.Description("Taxonomy field: tags or categories"),
	)

	s.mcp.AddTool(mcp.NewTool("list_taxonomy",
		mcp.WithDescription("List every tag or category with its slug id and post count, "+
			"most used first."),
		fieldArg,
	), s.listTaxonomy)

	s.mcp.AddTool(mcp.NewTool("get_taxonomy_group",
		mcp.WithDescription("Get one tag or category by its slug id, with its posts newest first."),
		fieldArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Slug id of the group (e.g. go, machine-learning)")),
	), s.getTaxonomyGroup)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List published posts newest first, optionally filtered by tag or category label."),
		mcp.WithString("tag", mcp.Description("Exact tag label to filter by")),
		mcp.WithString("category", mcp.Description("Exact category label to filter by")),
		mcp.WithNumber("limit", mcp.Description("Max posts to return (default all)")),
		mcp.WithNumber("offset", mcp.Description("Posts to skip (default 0)")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Full-text search through post titles, bodies, tags, and categories."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the full Markdown source of a post."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Post URL (e.g. /posts/go/intro.html) or source path (posts/go/intro.md)")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Scaffold a new post under posts/ with a frontmatter skeleton. "+
			"Read the contract first via the get_post_contract tool or the "+PostFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to posts/ (e.g. go/generics); .md is appended")),
		mcp.WithString("title", mcp.Description("Heading text; defaults to the file name")),
		mcp.WithString("desc", mcp.Description("Short description")),
		mcp.WithString("tags", mcp.Description("Tags separated by commas, slashes, or pipes")),
		mcp.WithBoolean("force", mcp.Description("Overwrite an existing post")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the Folio post format contract. "+
			"Call this before creating or editing posts to ensure correct structure."),
	), s.getPostContract)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource(PostFormatURI, "Post Format Contract",
			mcp.WithResourceDescription("Markdown post format, frontmatter fields, and taxonomy rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func requireField(req mcp.CallToolRequest) (taxonomy.Field, error) {
	raw, err := req.RequireString("field")
	if err != nil {
		return "", err
	}
	return taxonomy.ParseField(raw)
}

func (s *Server) listTaxonomy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := requireField(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Suggest(ctx, field, "", 0))
}

func (s *Server) getTaxonomyGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := requireField(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.Group(ctx, field, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no %s group with id %q", field, id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g)
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	category := req.GetString("category", "")

	limit := req.GetInt("limit", 0)
	offset := req.GetInt("offset", 0)

	items, _, err := s.svc.ListPosts(ctx, limit, offset, tag, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(items))
	for i, p := range items {
		lines[i] = fmt.Sprintf("%s\t%s\t%s", p.Date.String, p.URL, p.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, searchLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.HasSuffix(u, ".md") {
		u = content.URLFor(u)
	} else if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	post, err := s.svc.GetPost(ctx, u)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", u)), nil
	}
	return mcp.NewToolResultText(post.Content), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	post, err := s.svc.CreatePost(ctx, scaffold.Options{
		Path:  p,
		Title: req.GetString("title", ""),
		Desc:  req.GetString("desc", ""),
		Tags:  req.GetString("tags", ""),
		Force: req.GetBool("force", false),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("post already exists: %s", p)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", post.Path, post.URL)), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PostFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}

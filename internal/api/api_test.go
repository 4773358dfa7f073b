package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/scaffold"
	"github.com/starford/folio/internal/testutil"
)

var fixtures = map[string]string{
	"posts/go/intro.md":   "---\ntitle: Intro\ndate: 2024-01-10\ntags: go, basics\ncategories: Backend\n---\nuniquetoken here\n",
	"posts/go/context.md": "---\ntitle: Context\ndate: 2024-03-05\ntags: [go, concurrency]\ncategories: Backend\n---\nCancellation.\n",
	"posts/web/vue.md":    "---\ntitle: Vue\ndate: 2023-11-20\ntags: Vue\ncategories: Frontend\n---\nComponents.\n",
}

// testEnv sets up a temp content root, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode; a non-empty one means token mode.
func testEnv(t *testing.T, authToken string) (*postservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*postservice.Service, http.Handler) {
	t.Helper()
	return testEnvFiles(t, fixtures, authEnabled, token, sseHandler)
}

func testEnvFiles(t *testing.T, files map[string]string, authEnabled bool, token string, sseHandler http.Handler) (*postservice.Service, http.Handler) {
	t.Helper()
	_, store := testutil.TestContentRoot(t, files)
	db := testutil.TestDB(t)
	logger := testutil.QuietLogger()

	posts, err := content.NewCollection(store, content.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	svc := postservice.NewService(store, db, posts, scaffold.New(store, nil), logger)
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(b))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListPosts(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/posts?limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Posts) != 2 {
		t.Fatalf("total = %d, len = %d", resp.Total, len(resp.Posts))
	}
	if resp.Posts[0].URL != "/posts/go/context.html" {
		t.Errorf("first = %q, want newest post", resp.Posts[0].URL)
	}

	w = do(t, router, http.MethodGet, "/posts?tag=Vue", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Posts[0].Title != "Vue" {
		t.Errorf("tag filter = %+v", resp)
	}
}

func TestGetPost_ByURLAndPath(t *testing.T) {
	_, router := testEnv(t, "")

	for _, target := range []string{"/posts/posts/go/intro.html", "/posts/posts/go/intro.md", "/posts/posts%2Fgo%2Fintro.html"} {
		w := do(t, router, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", target, w.Code)
			continue
		}
		var post PostDetail
		_ = json.Unmarshal(w.Body.Bytes(), &post)
		if post.Title != "Intro" {
			t.Errorf("GET %s title = %q", target, post.Title)
		}
		if w.Header().Get("ETag") == "" {
			t.Errorf("GET %s missing ETag", target)
		}
	}
}

func TestGetPost_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/posts/posts/nope.html", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}
}

func TestTaxonomy_ETag(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags = %d", w.Code)
	}
	var resp TaxonomyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Field != "tags" || resp.Version != svc.Version() {
		t.Errorf("field = %q, version = %q", resp.Field, resp.Version)
	}
	if len(resp.Groups) != 4 || resp.Groups[0].Label != "go" {
		t.Errorf("groups = %+v", resp.Groups)
	}

	etag := w.Header().Get("ETag")
	w = do(t, router, http.MethodGet, "/tags", nil, http.Header{"If-None-Match": {etag}})
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional GET = %d, want 304", w.Code)
	}

	w = do(t, router, http.MethodGet, "/tags", nil, http.Header{"If-None-Match": {`"stale"`}})
	if w.Code != http.StatusOK {
		t.Errorf("stale conditional GET = %d, want 200", w.Code)
	}
}

func TestGroupEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/categories/backend", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("group = %d", w.Code)
	}
	var g GroupSummary
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if g.Label != "Backend" || g.Count != 2 || len(g.Posts) != 2 {
		t.Errorf("group = %+v", g)
	}

	w = do(t, router, http.MethodGet, "/tags/rust", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown group = %d, want 404", w.Code)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags/suggest?q=B", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("suggest = %d", w.Code)
	}
	var resp SuggestResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Groups) != 1 || resp.Groups[0].ID != "basics" {
		t.Errorf("suggest = %+v", resp.Groups)
	}
}

func TestTermCountsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tags/counts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("counts = %d", w.Code)
	}
	var resp TermCountsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Counts) != 4 {
		t.Errorf("len(counts) = %d, want 4", len(resp.Counts))
	}
}

func TestCreatePost(t *testing.T) {
	_, router := testEnv(t, "")

	req := CreatePostRequest{Path: "rust/ownership", Tags: "rust"}
	w := do(t, router, http.MethodPost, "/posts", req, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var post PostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	if post.URL != "/posts/rust/ownership.html" {
		t.Errorf("url = %q", post.URL)
	}

	w = do(t, router, http.MethodGet, "/tags/rust", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("new tag group = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPost, "/posts", req, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreatePost_BadRequest(t *testing.T) {
	_, router := testEnv(t, "")

	for name, body := range map[string]any{
		"missing path": CreatePostRequest{Title: "x"},
		"escape":       CreatePostRequest{Path: "../../etc/passwd"},
	} {
		w := do(t, router, http.MethodPost, "/posts", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: create = %d, want 400", name, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].URL != "/posts/go/intro.html" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/rebuild", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild = %d", w.Code)
	}
	var resp RebuildResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Version != svc.Version() {
		t.Errorf("version = %q, want %q", resp.Version, svc.Version())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/tags", nil, http.Header{"Authorization": {"Bearer secret123"}})
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/posts", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/posts", nil, http.Header{"Authorization": {"Bearer wrong"}})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/posts", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_NotMountedWithoutHandler(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/events", nil, nil)
	if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("events without handler = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/tags?access_token=secret123", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("query token GET = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPost, "/rebuild?access_token=secret123", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token POST = %d, want 401", w.Code)
	}
}

func TestListPosts_HugeLimit(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/posts?offset=1&limit=9223372036854775807", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", w.Code, w.Body.String())
	}
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Posts) != 2 {
		t.Errorf("total = %d, len = %d, want 3 and 2", resp.Total, len(resp.Posts))
	}
}

func TestGroupEndpoint_EscapedIDs(t *testing.T) {
	_, router := testEnvFiles(t, map[string]string{
		"posts/odd.md": "---\ntitle: Odd\ndate: 2024-01-01\ntags: [\"///\", \" - | - \"]\n---\nbody\n",
	}, false, "", nil)

	tests := []struct {
		target string
		label  string
	}{
		{"/tags/%2F%2F%2F", "///"},
		{"/tags/%252F%252F%252F", "///"},
		{"/tags/-%20%7C%20-", "- | -"},
		{"/tags/-%2520%257C%2520-", "- | -"},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodGet, tt.target, nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", tt.target, w.Code)
			continue
		}
		var g postservice.GroupSummary
		_ = json.Unmarshal(w.Body.Bytes(), &g)
		if g.Label != tt.label {
			t.Errorf("GET %s label = %q, want %q", tt.target, g.Label, tt.label)
		}
	}
}

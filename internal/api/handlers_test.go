package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/httpx"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

func newTestHandlers() (*Handlers, *page.Store) {
	store := page.NewStore()
	h := &Handlers{
		Store:      store,
		Analyzer:   analyzer.New(),
		Summarizer: page.NewSummarizer(page.SummarizeOptions{}),
		Bridge:     wsbridge.NewBridge(store, nil, nil, nil, wsbridge.Options{}),
	}
	return h, store
}

func serve(h *Handlers) *httptest.Server {
	mux := http.NewServeMux()
	h.Register(mux, httpx.RequireToken("agent-token"))
	return httptest.NewServer(mux)
}

func agentGet(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer agent-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCurrentContextServesPlaceholderBeforeAnyPush(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/current-context")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap page.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, "No context received yet", snap.Title)
	require.Equal(t, "waiting_for_context", snap.Metadata["status"])
}

func TestContextPushThenFetch(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	body := `{"url": "https://app.test/form", "title": "Signup", "dom": {"html": "<form><input name='email' required></form>"}}`
	resp, err := http.Post(srv.URL+"/current-context", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get := agentGet(t, srv, "/agent/context?url="+`https://app.test/form`)
	defer get.Body.Close()
	var snap page.Snapshot
	require.NoError(t, json.NewDecoder(get.Body).Decode(&snap))
	require.Equal(t, "Signup", snap.Title)
	require.NotNil(t, snap.DOM)
	require.NotEmpty(t, snap.DOM.Forms, "the summarizer derives forms from raw html")
}

func TestContextPushRejectsMissingURL(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/current-context", "application/json", strings.NewReader(`{"title": "x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgentEndpointsRequireToken(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/agent/context")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestScreenshotIngestAndFetch(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/screenshot", "application/json",
		strings.NewReader(`{"url": "https://app.test", "screenshot": "aGVsbG8="}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get := agentGet(t, srv, "/agent/screenshot?url=https://app.test")
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(get.Body).Decode(&payload))
	require.Equal(t, "aGVsbG8=", payload["screenshot"])
}

func TestAgentScreenshotMissingIs404(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp := agentGet(t, srv, "/agent/screenshot")
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentContextWithScreenshotToleratesMissingShot(t *testing.T) {
	h, store := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	store.PutContext(page.Snapshot{URL: "https://app.test", Title: "Page", Metadata: map[string]any{}})

	resp := agentGet(t, srv, "/agent/context-with-screenshot?url=https://app.test")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Context    page.Snapshot `json:"context"`
		Screenshot string        `json:"screenshot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Page", out.Context.Title)
	require.Empty(t, out.Screenshot)
}

func TestAgentAnalysisReturnsInstructions(t *testing.T) {
	h, store := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	store.PutContext(page.Snapshot{
		URL:   "https://shop.test/checkout",
		Title: "Checkout",
		DOM:   &page.DOM{Text: "review items"},
		Metadata: map[string]any{},
	})

	resp := agentGet(t, srv, "/agent/analysis?url=https://shop.test/checkout")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Analysis     analyzer.Analysis `json:"analysis"`
		Instructions []map[string]any  `json:"instructions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, analyzer.PageCheckout, out.Analysis.PageType)
	require.NotEmpty(t, out.Instructions)
}

func TestAgentBehaviorValidation(t *testing.T) {
	h, _ := newTestHandlers()
	srv := serve(h)
	defer srv.Close()

	resp := agentGet(t, srv, "/agent/behavior")
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = agentGet(t, srv, "/agent/behavior?session=ghost")
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

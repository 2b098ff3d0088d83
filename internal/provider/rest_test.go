package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextbridge/bridged/internal/page"
)

func contextHandler(t *testing.T, snap page.Snapshot) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(snap))
	}
}

func TestCurrentContext(t *testing.T) {
	snap := page.Snapshot{
		URL:       "https://app.test/dashboard",
		Title:     "Dashboard",
		Timestamp: 1700000000000,
		Metadata:  map[string]any{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/current-context", r.URL.Path)
		require.Equal(t, "https://app.test/other", r.URL.Query().Get("url"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		contextHandler(t, snap)(w, r)
	}))
	defer srv.Close()

	p := NewREST(Config{
		BaseURL:     srv.URL,
		AuthHeaders: map[string]string{"Authorization": "Bearer tok"},
	}, nil)
	defer p.Cleanup()

	got, err := p.CurrentContext(context.Background(), "https://app.test/other")
	require.NoError(t, err)
	require.Equal(t, snap, got)
	require.Equal(t, "https://app.test/dashboard", p.LastKnownURL(),
		"the response url wins over the requested one")
}

func TestCurrentContextNoBaseURL(t *testing.T) {
	p := NewREST(Config{}, nil)
	_, err := p.CurrentContext(context.Background(), "")
	require.ErrorIs(t, err, ErrNoBaseURL)
}

func TestCurrentContextTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	p := NewREST(Config{BaseURL: srv.URL}, nil)
	_, err := p.CurrentContext(context.Background(), "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBadPayload)
}

func TestCurrentContextBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "no url here"}`))
	}))
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL}, nil)
	_, err := p.CurrentContext(context.Background(), "")
	require.ErrorIs(t, err, ErrBadPayload)
}

func TestScreenshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/screenshot", r.URL.Path)

		var req screenshotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://app.test/page", req.URL)
		require.Equal(t, "png", req.Options.Format)
		require.InDelta(t, 0.8, req.Options.Quality, 0.001)

		_, _ = w.Write([]byte(`{"screenshot": "aGVsbG8="}`))
	}))
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL, EnableScreenshots: true}, nil)
	defer p.Cleanup()

	shot, err := p.Screenshot(context.Background(), "https://app.test/page", nil)
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8=", shot)
}

func TestScreenshotFallsBackToLastKnownURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/current-context", contextHandler(t, page.Snapshot{
		URL: "https://app.test/seen", Metadata: map[string]any{},
	}))
	mux.HandleFunc("/screenshot", func(w http.ResponseWriter, r *http.Request) {
		var req screenshotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://app.test/seen", req.URL)
		_, _ = w.Write([]byte(`{"screenshot": "ZGF0YQ=="}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL, EnableScreenshots: true}, nil)
	defer p.Cleanup()

	_, err := p.CurrentContext(context.Background(), "")
	require.NoError(t, err)

	_, err = p.Screenshot(context.Background(), "", nil)
	require.NoError(t, err)
}

func TestScreenshotNoTargetURL(t *testing.T) {
	p := NewREST(Config{BaseURL: "http://frontend.test", EnableScreenshots: true}, nil)
	_, err := p.Screenshot(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrNoTargetURL)
}

func TestScreenshotDenied(t *testing.T) {
	p := NewREST(Config{
		BaseURL:           "http://frontend.test",
		EnableScreenshots: true,
		WhitelistedPages:  []string{"/allowed"},
	}, nil)
	_, err := p.Screenshot(context.Background(), "https://app.test/secret", nil)
	require.ErrorIs(t, err, ErrScreenshotDenied)
}

func TestScreenshotMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL, EnableScreenshots: true}, nil)
	_, err := p.Screenshot(context.Background(), "https://app.test/page", nil)
	require.ErrorIs(t, err, ErrBadPayload)
}

func TestScreenshotAllowedPolicy(t *testing.T) {
	urls := []string{"", "https://a.test", "https://a.test/allowed", "anything"}
	whitelists := [][]string{nil, {}, {"allowed"}, {"x", "y"}}

	for _, wl := range whitelists {
		p := NewREST(Config{EnableScreenshots: false, WhitelistedPages: wl}, nil)
		for _, u := range urls {
			assert.False(t, p.ScreenshotAllowed(u), "disabled screenshots always deny (%v, %q)", wl, u)
		}
	}

	open := NewREST(Config{EnableScreenshots: true}, nil)
	for _, u := range urls {
		assert.True(t, open.ScreenshotAllowed(u), "no whitelist allows everything")
	}

	gated := NewREST(Config{EnableScreenshots: true, WhitelistedPages: []string{"/app/", "staging"}}, nil)
	assert.True(t, gated.ScreenshotAllowed("https://x.test/app/home"))
	assert.True(t, gated.ScreenshotAllowed("https://staging.x.test/"))
	assert.False(t, gated.ScreenshotAllowed("https://x.test/other"))
}

func TestContextWithScreenshotSwallowsScreenshotFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/current-context", contextHandler(t, page.Snapshot{
		URL: "https://app.test/page", Title: "Page", Metadata: map[string]any{},
	}))
	mux.HandleFunc("/screenshot", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL, EnableScreenshots: true}, nil)
	defer p.Cleanup()

	resp, err := p.ContextWithScreenshot(context.Background(), "", nil)
	require.NoError(t, err, "context delivery must not depend on the screenshot")
	require.Equal(t, "Page", resp.Context.Title)
	require.Empty(t, resp.Screenshot)
}

func TestCleanupIsIdempotentAndRecreates(t *testing.T) {
	srv := httptest.NewServer(contextHandler(t, page.Snapshot{
		URL: "https://app.test", Metadata: map[string]any{},
	}))
	defer srv.Close()

	p := NewREST(Config{BaseURL: srv.URL}, nil)
	_, err := p.CurrentContext(context.Background(), "")
	require.NoError(t, err)

	p.Cleanup()
	p.Cleanup()

	_, err = p.CurrentContext(context.Background(), "")
	require.NoError(t, err, "the client is recreated after cleanup")
}

func TestFetchContextOneShot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		contextHandler(t, page.Snapshot{URL: "https://app.test", Metadata: map[string]any{}})(w, r)
	}))
	defer srv.Close()

	snap, err := FetchContext(context.Background(), srv.URL, "", map[string]string{"X-Auth-Token": "secret"})
	require.NoError(t, err)
	require.Equal(t, "https://app.test", snap.URL)
}

package proxyserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo/pkg/embed"
	"github.com/mnemohq/mnemo/pkg/ingestion"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/retrieval"
	"github.com/mnemohq/mnemo/pkg/router"
)

func testServer(t *testing.T, cfg *mnemo.Config, upstream *httptest.Server) *Server {
	t.Helper()
	store := memstore.NewMemory()
	t.Cleanup(func() { store.Close() })
	embedder := embed.NewLocal(mnemo.Dimension)
	rt, err := router.New()
	require.NoError(t, err)

	now := mnemo.NowMicro()
	vec, err := embedder.Embed(context.Background(), "User's favorite color is blue")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), &mnemo.Memory{
		ID: "seed", Content: "User's favorite color is blue", Embedding: vec,
		MemoryType: mnemo.Semantic, Source: mnemo.SourceManual, Tier: mnemo.TierHot,
		Compression: mnemo.CompressionFull, Weight: 0.8, CreatedAt: now, LastAccessed: now,
	}))

	retriever := retrieval.New(store, embedder, rt, retrieval.DefaultConfig, nil)
	ingestor := ingestion.New(rt, embedder, store)

	if cfg.AllowedHosts == nil && upstream != nil {
		u, _ := url.Parse(upstream.URL)
		cfg.AllowedHosts = []string{u.Hostname()}
	}
	return New(cfg, retriever, ingestor, upstream.Client(), nil)
}

func baseConfig() *mnemo.Config {
	return &mnemo.Config{
		Timeout:            5 * time.Second,
		MaxMemories:        5,
		MaxInjectionTokens: 1000,
	}
}

func TestHealth(t *testing.T) {
	s := New(baseConfig(), nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestPassthrough_BlockedHost(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowedHosts = []string{"api.openai.com"}
	s := New(cfg, nil, nil, nil, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p/https://evil.example/", nil)
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "host_not_allowed")
}

func TestPassthrough_InvalidURL(t *testing.T) {
	s := New(baseConfig(), nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p/ftp://x", nil)
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "invalid_url")
}

func TestPassthrough_NoUpstreamConfigured(t *testing.T) {
	s := New(baseConfig(), nil, nil, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPassthrough_ForwardsBodyAndHeadersStripsHopByHop(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "a", r.Header.Get("X-T"))
		require.Empty(t, r.Header.Get("Proxy-Connection"))
		require.Empty(t, r.Header.Get("Keep-Alive"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	s := testServer(t, baseConfig(), upstream)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/p/"+upstream.URL+"/echo", strings.NewReader(`{"x":1}`))
	req.Header.Set("X-T", "a")
	req.Header.Set("Proxy-Connection", "keep-alive")
	req.Header.Set("Keep-Alive", "timeout=5")
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"x":1}`, rr.Body.String())
}

func TestPassthrough_StarAllowlistEchoes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "a", r.Header.Get("X-T"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	cfg := baseConfig()
	cfg.AllowedHosts = []string{"*"}
	s := testServer(t, cfg, upstream)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/p/"+upstream.URL+"/echo", strings.NewReader(`{"x":1}`))
	req.Header.Set("X-T", "a")
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"x":1}`, rr.Body.String())
}

func TestPassthrough_UpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer upstream.Close()

	s := testServer(t, baseConfig(), upstream)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p/"+upstream.URL+"/v1/models", nil)
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Contains(t, rr.Body.String(), "rate limited")
}

func TestPassthrough_InjectsAnthropicMemories(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(body, &parsed))
		system := parsed["system"].(string)
		require.True(t, strings.HasPrefix(system, "Be brief\n"))
		require.Contains(t, system, "mnemo-memories")
		msgs := parsed["messages"].([]any)
		require.Len(t, msgs, 1)
		require.Equal(t, "user", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Blue."}]}`))
	}))
	defer upstream.Close()

	s := testServer(t, baseConfig(), upstream)

	reqBody := `{"system":"Be brief","messages":[{"role":"user","content":"What color do I like?"}],"max_tokens":50}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/p/"+upstream.URL+"/v1/messages", strings.NewReader(reqBody))
	req.Header.Set("x-api-key", "test-key")
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Blue.")
}

func TestPassthrough_InjectsOpenAIMemories(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(body, &parsed))
		msgs := parsed["messages"].([]any)
		first := msgs[0].(map[string]any)
		require.Equal(t, "system", first["role"])
		require.Contains(t, first["content"], "mnemo-memories")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Your favorite color is blue."}}]}`))
	}))
	defer upstream.Close()

	cfg := baseConfig()
	s := testServer(t, cfg, upstream)

	reqBody := `{"messages":[{"role":"user","content":"What color do I like?"}]}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/p/"+upstream.URL+"/v1/chat/completions", strings.NewReader(reqBody))
	req.Header.Set("Authorization", "Bearer test-key")
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "favorite color is blue")
}

package proxyserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/ingestion"
	"github.com/mnemohq/mnemo/pkg/injection"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/provider"
	"github.com/mnemohq/mnemo/pkg/retrieval"
)

// Server is the transparent memory-augmenting HTTP proxy.
type Server struct {
	cfg       *mnemo.Config
	client    *http.Client
	retriever *retrieval.Retriever
	ingestor  *ingestion.Ingestor
	logger    *zap.Logger
}

// New builds a Server. client may be nil, in which case a client with
// cfg.Timeout is constructed.
func New(cfg *mnemo.Config, retriever *retrieval.Retriever, ingestor *ingestion.Ingestor, client *http.Client, logger *zap.Logger) *Server {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, client: client, retriever: retriever, ingestor: ingestor, logger: logger}
}

// Handler builds the chi router: request-ID/real-IP/
// recoverer/CORS middleware, GET /health, any method on /p/{rest...},
// and a configured-upstream fallback for everything else.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.handleHealth)
	r.HandleFunc("/p/*", s.handlePassthrough)
	r.NotFound(s.handleFallback)

	return r
}

// requestLogger emits one structured line per request with the chi
// request id, method, path, status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFallback forwards to cfg.UpstreamURL when configured, else
// answers 404.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if s.cfg.UpstreamURL == "" {
		writeError(w, mnemo.Newf(mnemo.KindNotFound, "no_upstream_configured"))
		return
	}
	base, err := url.Parse(s.cfg.UpstreamURL)
	if err != nil {
		writeError(w, mnemo.Newf(mnemo.KindConfig, "invalid_url"))
		return
	}
	target := *base
	target.Path = strings.TrimSuffix(base.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery
	s.forward(w, r, &UpstreamTarget{URL: &target})
}

// handlePassthrough implements the dynamic /p/{rest...} route: resolve
// the target, attempt memory injection (fail-open on any error), and
// forward.
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	target, err := TargetFromPath(r.URL.Path, r.URL.RawQuery, s.cfg.AllowedHosts)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, mnemo.Newf(mnemo.KindConfig, "request"))
		return
	}
	_ = r.Body.Close()

	kind := provider.Detect(target.URL, r.Header, body)
	body = s.tryInject(r.Context(), kind, body)

	r2 := r.Clone(r.Context())
	r2.Body = io.NopCloser(bytes.NewReader(body))
	r2.ContentLength = int64(len(body))
	s.forward(w, r2, target)
}

// tryInject runs detect -> extract_query -> retrieve -> format -> inject
//. Any failure at any step falls back to the
// original body untouched: the memory path must never block a client.
func (s *Server) tryInject(ctx context.Context, kind provider.Kind, body []byte) []byte {
	if kind == provider.Unknown || s.retriever == nil {
		return body
	}
	query, ok := provider.ExtractUserQuery(kind, body)
	if !ok {
		return body
	}

	results, err := s.retriever.Retrieve(ctx, query, s.cfg.MaxMemories, mnemo.NowMicro())
	if err != nil {
		s.logger.Warn("proxy: retrieve failed, forwarding unmodified", zap.Error(err))
		return body
	}

	block := injection.Format(results, s.cfg.MaxInjectionTokens)
	injected, err := provider.InjectMemories(kind, body, block)
	if err != nil {
		s.logger.Warn("proxy: inject_memories failed, forwarding unmodified", zap.Error(err))
		return body
	}
	return injected
}

// forward dispatches r to target, tees the response body, and writes
// status/headers/body through to w.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, target *UpstreamTarget) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, target.URL.String(), r.Body)
	if err != nil {
		writeError(w, mnemo.Wrap(mnemo.KindUpstream, "build_request", err))
		return
	}
	upstreamReq.Header = cloneHeader(r.Header)

	resp, err := s.client.Do(upstreamReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeError(w, mnemo.Newf(mnemo.KindTimeout, "timeout"))
			return
		}
		writeError(w, mnemo.Wrap(mnemo.KindNetwork, "network", err))
		return
	}
	defer resp.Body.Close()

	kind := provider.Detect(target.URL, r.Header, nil)
	isSSE := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	tee := newResponseTee(resp.Body, func(data []byte) {
		s.ingestResponse(kind, isSSE, data)
	})

	outHeader := w.Header()
	for k, vv := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vv {
			outHeader.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, tee); err != nil {
		s.logger.Warn("proxy: response copy interrupted", zap.Error(err))
	}
}

func (s *Server) ingestResponse(kind provider.Kind, isSSE bool, data []byte) {
	if s.ingestor == nil || kind == provider.Unknown || len(data) == 0 {
		return
	}
	var text string
	if isSSE {
		text = provider.ParseSSEContent(kind, data)
	} else {
		text = provider.ParseResponseContent(kind, data)
	}
	if text == "" {
		return
	}
	if _, err := s.ingestor.Ingest(context.Background(), text, mnemo.SourceConversation, ""); err != nil {
		s.logger.Warn("proxy: ingest response failed", zap.Error(err))
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHop {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the error body shape
// {"error":"<kind>","message":"<human text>"}.
func writeError(w http.ResponseWriter, err error) {
	var e *mnemo.Error
	status := http.StatusInternalServerError
	code := "internal"
	if errors.As(err, &e) {
		status = e.HTTPStatus()
		code = e.Message
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

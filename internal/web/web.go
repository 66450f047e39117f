package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"calrss/internal/config"
	"calrss/internal/feed"
	appLog "calrss/internal/log"
	"calrss/internal/store"
)

// Fixed response bodies. Diagnostic detail (which URL failed, parse error
// text) goes to the server log only, never to the caller.
const (
	bodyUnauthorized = "Unauthorized"
	bodyFetchError   = "Error Fetching Calendar"
)

// Server serves the RSS feed endpoint backed by the result cache and the
// generation pipeline. It is stateless across requests beyond the shared
// store; concurrent requests racing on a cold cache at worst regenerate
// redundantly (last writer wins).
type Server struct {
	cfg *config.Config
	st  store.Store
	gen *feed.Generator
	mux *http.ServeMux
	ttl time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st store.Store, gen *feed.Generator) *Server {
	s := &Server{
		cfg: cfg,
		st:  st,
		gen: gen,
		mux: http.NewServeMux(),
		ttl: cfg.TTL(),
		now: time.Now,
	}
	s.registerRoutes()
	return s
}

// SetNow overrides the clock used for cache freshness. Test hook.
func (s *Server) SetNow(now func() time.Time) {
	s.now = now
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/feed.rss", s.handleFeed)
	// The original deployment served the feed at the function root.
	s.mux.HandleFunc("/", s.handleFeed)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleFeed is the single feed endpoint.
//
// Per request: credential check, cache lookup, on miss regenerate, store
// best-effort, respond. A stale cache row is ignored (and later
// overwritten), never proactively deleted.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !secureCompare(r.URL.Query().Get("api_key"), s.cfg.APIKey) {
		http.Error(w, bodyUnauthorized, http.StatusUnauthorized)
		return
	}

	// Cache lookup. A read failure is a miss, not a request failure.
	cached, err := s.st.Get(ctx)
	if err != nil {
		appLog.Error("feed cache read failed; regenerating", err)
		cached = nil
	}
	if cached != nil && cached.Fresh(s.now(), s.ttl) {
		appLog.Debug("feed cache hit", "stored_at", cached.StoredAt)
		s.respond(w, cached.XML)
		return
	}

	xml, err := s.gen.Generate(ctx)
	if err != nil {
		appLog.Error("feed generation failed", err)
		http.Error(w, bodyFetchError, http.StatusInternalServerError)
		return
	}

	// Best-effort: the fresh document is returned to the caller even when
	// the write fails.
	if err := s.st.Put(ctx, xml); err != nil {
		appLog.Error("feed cache write failed", err)
	}

	s.respond(w, xml)
}

func (s *Server) respond(w http.ResponseWriter, xml string) {
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("X-Robots-Tag", "noindex, nofollow, noarchive")
	w.Header().Set("Cache-Control", "public, max-age=3600, stale-while-revalidate=60")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(xml)); err != nil {
		appLog.Error("failed to write feed response", err)
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Refresh regenerates the feed and stores it unconditionally. Used by the
// cron pre-warmer and the -once mode; unlike the request path, a store
// failure here is surfaced to the caller.
func Refresh(ctx context.Context, st store.Store, gen *feed.Generator) error {
	xml, err := gen.Generate(ctx)
	if err != nil {
		return err
	}
	return st.Put(ctx, xml)
}

// StartServer runs an HTTP server bound to cfg.Listen and shuts it down
// when ctx is cancelled.
func StartServer(ctx context.Context, cfg *config.Config, st store.Store, gen *feed.Generator) error {
	s := NewServer(cfg, st, gen)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

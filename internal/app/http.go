package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"emberpost/pkg/api"
	"emberpost/pkg/logger"
)

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler(a.store, a.engine))
}

// readyzHandler reports readiness: the cache must be open; the remote store
// being unreachable is NOT a readiness failure, offline operation is a
// first-class mode.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.cache == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// startHTTP builds the handler chain and starts the HTTP server in a
// goroutine. It returns the server (so Run can shut it down gracefully) and
// a channel carrying any fatal serve error.
func (a *App) startHTTP() (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	// browser UI needs CORS; default to permissive localhost usage when
	// nothing is configured
	origins := a.cfg.Security.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	var wrapped http.Handler = mux
	wrapped = api.RateLimit(api.RateLimitConfig{
		RPS:   a.cfg.Security.RateLimit.RPS,
		Burst: a.cfg.Security.RateLimit.Burst,
	})(wrapped)
	wrapped = c.Handler(wrapped)
	wrapped = api.LogRequests(wrapped)

	srv := &http.Server{Addr: a.cfg.Addr(), Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return srv, errCh
}

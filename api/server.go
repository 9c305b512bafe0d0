/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     slog request logging and Prometheus request metrics
  4. CORS:       Cross-origin requests for the browser client

ROUTE GROUPS:
  /healthz               Liveness
  /metrics               Prometheus
  /s/{secret}/api/*      Sheet API, guarded by the shared secret
  /s/{secret}/*          Static files (browser client)

SECURITY NOTE:
  The only access control is the secret path segment, checked against a
  bcrypt hash. With no hash configured every secret is accepted.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Secret guard and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configure NewRouter. Zero values are usable.
type RouterOptions struct {
	SecretHash     string
	AllowedOrigins []string
	StaticDir      string
	Registry       *prometheus.Registry
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(NewHTTPMetrics(opts.Registry)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	r.Route("/s/{secret}", func(r chi.Router) {
		r.Use(NewSecretGuard(opts.SecretHash).Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Route("/sheet", func(r chi.Router) {
				r.Get("/", h.GetSheet)
				r.Get("/document", h.GetDocument)
				r.Put("/period", h.SetPeriod)
				r.Put("/rates", h.SetRates)
				r.Post("/cells/{date}/{person}/toggle", h.Toggle)
				r.Post("/bulk", h.BulkSet)
			})

			r.Route("/people", func(r chi.Router) {
				r.Post("/", h.AddPeople)
				r.Put("/special", h.SetSpecialHolder)
				r.Delete("/{index}", h.DeletePerson)
			})

			r.Post("/admin/purge", h.Purge)
			r.Get("/holidays", h.ListHolidays)
		})

		r.Get("/*", staticHandler(opts.StaticDir))
	})

	return r
}

// DefaultStaticDir matches the STATIC_DIR default of the config package.
const DefaultStaticDir = "./web"

// staticHandler serves the built browser client from dir, falling back to
// index.html for client-side routing.
func staticHandler(dir string) http.HandlerFunc {
	if dir == "" {
		dir = DefaultStaticDir
	}
	if _, err := os.Stat(dir); err != nil {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>弁当注文表</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>弁当注文表 API</h1>
<p>The browser client is not built. The JSON API is served under <code>api/</code>.</p>
<ul>
<li><code>GET api/sheet</code> - current period</li>
<li><code>GET api/holidays</code> - holidays of this year</li>
</ul>
</body>
</html>`))
		}
	}

	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		rest := "/" + chi.URLParam(r, "*")
		fullPath := filepath.Join(dir, filepath.FromSlash(rest))
		if !strings.HasPrefix(fullPath, filepath.Clean(dir)) {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(fullPath); os.IsNotExist(err) || rest == "/" {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = rest
		fileServer.ServeHTTP(w, r2)
	}
}

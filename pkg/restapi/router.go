package restapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"aoai-simulated-api/internal/limiter"
	"aoai-simulated-api/internal/metrics"
	"aoai-simulated-api/internal/sim"
	"aoai-simulated-api/internal/usagestore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type RouterOpts struct {
	Logger zerolog.Logger

	Mode   sim.Mode
	APIKey string

	Source    ResponseSource
	Saver     RecordingSaver
	Limiters  limiter.Registry
	UsageRepo usagestore.Repository

	Timeout time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(middleware.Timeout(opts.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerAPIKey, headerSubscriptionKey},
		ExposedHeaders:   []string{"Retry-After", "Operation-Location", "x-simulator-usage-id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Liveness endpoints stay unauthenticated so deployment probes
	// and the CI smoke test can reach them.
	r.Get("/", root)
	r.Get("/health", health)

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(opts.APIKey))

		r.Route("/++", func(r chi.Router) {
			newAdminHandler(opts.Mode, opts.Saver, opts.UsageRepo).handle(r)
		})

		simulation := newSimulationHandler(opts.Logger, opts.Source, opts.Limiters, opts.UsageRepo)
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			r.MethodFunc(method, "/*", simulation.handle)
		}
	})

	return r
}

func root(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, "aoai-simulated-api is running")
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, "ok")
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		routePattern := strings.Join(rctx.RoutePatterns, "")

		status := fmt.Sprintf("%d %s", ww.Status(), http.StatusText(ww.Status()))
		metrics.RestAPI.NewRequest(r.Method, routePattern, status, time.Since(start))
	})
}

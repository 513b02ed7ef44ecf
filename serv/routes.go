package serv

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	healthRoute      = "/health"
	routeCollections = "/api/v1/collections"
	routeCollection  = "/api/v1/collections/{name}"
	routeReload      = "/api/v1/admin/reload"
)

// routesHandler is the main handler for all routes
func routesHandler(s1 *Service, r chi.Router) (http.Handler, error) {
	s := s1.load()

	r.Use(setServerHeader)
	r.Use(requestLogger(s.zlog))

	if c := corsHandler(s.conf, s.zlog); c != nil {
		r.Use(c)
	}

	if s.conf.rateLimiterEnable() {
		rl, err := newRateLimiter(s.conf.RateLimiter)
		if err != nil {
			return nil, err
		}
		r.Use(rl.Handler)
	}

	// Healthcheck API
	r.Method(http.MethodGet, healthRoute, healthCheckHandler(s1))

	r.With(cacheControl(s.conf.CacheControl)).
		Method(http.MethodGet, routeCollections, collectionsHandler(s1))

	r.Route(routeCollection, func(r chi.Router) {
		r.With(cacheControl(s.conf.CacheControl)).
			Method(http.MethodGet, "/describe", describeHandler(s1))
		r.Method(http.MethodPost, "/find", findHandler(s1))
		r.Method(http.MethodPost, "/insert_one", insertOneHandler(s1))
		r.Method(http.MethodPost, "/update_many", updateManyHandler(s1))
		r.Method(http.MethodPost, "/delete_many", deleteManyHandler(s1))
	})

	r.Method(http.MethodPost, routeReload, reloadHandler(s1))

	return r, nil
}

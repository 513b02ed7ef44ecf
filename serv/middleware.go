package serv

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-http-utils/headers"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// number of client addresses whose limiters are kept
const rateLimiterClients = 10000

// Set the server header
func setServerHeader(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headers.Server, serverName)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// cacheControl sets the Cache-Control header on read only routes
func cacheControl(v string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		if v == "" {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headers.CacheControl, v)
			h.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			h.ServeHTTP(ww, r)

			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// corsHandler returns nil when no origins are allowed
func corsHandler(conf *Config, log *zap.Logger) func(http.Handler) http.Handler {
	if len(conf.AllowedOrigins) == 0 {
		return nil
	}

	opts := cors.Options{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowedHeaders:   conf.AllowedHeaders,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
		Debug:            conf.DebugCORS,
	}
	if conf.DebugCORS {
		opts.Logger = zap.NewStdLog(log)
	}
	return cors.New(opts).Handler
}

// rateLimiter keeps a token bucket per client address
type rateLimiter struct {
	conf     RateLimiter
	limiters *lru.Cache[string, *rate.Limiter]
}

func newRateLimiter(conf RateLimiter) (*rateLimiter, error) {
	c, err := lru.New[string, *rate.Limiter](rateLimiterClients)
	if err != nil {
		return nil, err
	}
	return &rateLimiter{conf: conf, limiters: c}, nil
}

func (rl *rateLimiter) limiter(ip string) *rate.Limiter {
	if l, ok := rl.limiters.Get(ip); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rl.conf.Rate), rl.conf.Bucket)
	if prev, ok, _ := rl.limiters.PeekOrAdd(ip, l); ok {
		return prev
	}
	return l
}

func (rl *rateLimiter) clientIP(r *http.Request) string {
	if h := rl.conf.IPHeader; h != "" {
		if v := r.Header.Get(h); v != "" {
			ip, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(ip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *rateLimiter) Handler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(rl.clientIP(r)).Allow() {
			w.Header().Set(headers.RetryAfter, "1")
			renderJSON(w, http.StatusTooManyRequests, bson.D{{Key: "error", Value: "rate limit exceeded"}})
			return
		}
		h.ServeHTTP(w, r)
	})
}

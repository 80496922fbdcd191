package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per method and route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(sw, r)

		route := routeLabel(r.URL.Path)
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
	})
}

// routeLabel collapses session ids out of paths so label cardinality stays
// bounded no matter how many uploads pass through.
func routeLabel(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/api/upload/chunk":
		return path
	}
	if strings.HasPrefix(path, "/api/upload/status/") {
		return "/api/upload/status/:id"
	}
	if strings.HasPrefix(path, "/api/upload/") {
		return "/api/upload/:id"
	}
	return "/other"
}

package httpmetrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

type Collector struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := r.Method
		path := NormalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(method, path).Inc()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusClass := fmt.Sprintf("%dxx", rec.status/100)
		metrics.HTTPRequestDurationSeconds.WithLabelValues(method, path, statusClass).Observe(time.Since(start).Seconds())
	})
}

// NormalizePath keeps label cardinality bounded by replacing document ids
// and upload filenames with placeholders.
func NormalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" {
		return path
	}

	switch {
	case parts[1] == "media" && parts[2] == "file" && len(parts) >= 4:
		return "/api/media/file/:filename"
	case parts[1] == "users" && (parts[2] == "login" || parts[2] == "me" || parts[2] == "forgot-password"):
		return path
	case parts[1] == "plugin-seo" || parts[1] == "admin":
		return path
	}

	parts[2] = ":id"
	return "/" + strings.Join(parts[:3], "/")
}

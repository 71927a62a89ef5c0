package http

import (
	"net/http"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
)

// MaxRequestSizeMiddleware bounds request bodies. Paths listed in overrides
// get their own limit, used for multipart uploads.
func MaxRequestSizeMiddleware(maxBytes int64, overrides map[string]int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := maxBytes
			if override, ok := overrides[r.URL.Path]; ok {
				limit = override
			}

			if r.ContentLength > limit {
				WriteErrorEnvelope(w, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "request body too large", nil, "")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

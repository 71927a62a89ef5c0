package http

import (
	"net/http"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/httpmetrics"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

// BuildBaseHandler wraps handler in the middleware every request passes
// through. uploadPaths accept bodies up to the upload limit.
func BuildBaseHandler(log *logger.Logger, handler http.Handler, uploadPaths ...string) http.Handler {
	overrides := make(map[string]int64, len(uploadPaths))
	for _, p := range uploadPaths {
		overrides[p] = constants.MaxUploadSize
	}

	metrics := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize, overrides)
	csp := ContentSecurityPolicyMiddleware("")

	return SecurityHeadersMiddleware(csp(TraceIDMiddleware(recovery(maxRequestSize(metrics.Wrap(handler))))))
}

package service

import (
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

func incrementTokensIssued(purpose string) {
	metrics.TokensIssued.WithLabelValues(purpose).Inc()
}

func recordLogin(result string) {
	metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

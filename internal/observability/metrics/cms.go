package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SeedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_seed_runs_total",
			Help: "Bootstrap seeder invocations by outcome",
		},
		[]string{"outcome"},
	)

	DocumentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_document_operations_total",
			Help: "Local API operations by collection, operation and result",
		},
		[]string{"collection", "operation", "result"},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_tokens_issued_total",
			Help: "JWTs issued by purpose",
		},
		[]string{"purpose"},
	)

	MailSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_mail_sent_total",
			Help: "Transactional emails by transport and result",
		},
		[]string{"transport", "result"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_upload_bytes_total",
			Help: "Bytes written to the uploads directory",
		},
	)
)

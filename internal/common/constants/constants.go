package constants

import "time"

const (
	UsersCollection = "users"
	PagesCollection = "pages"
	MediaCollection = "media"

	DefaultSeedEmail    = "dev@payloadcms.com"
	DefaultSeedPassword = "test"
	DefaultSeedTimeout  = 30 * time.Second

	PasswordMaxLength = 72
	BcryptCost        = 12

	DefaultFindLimit = 10
	MaxFindLimit     = 100

	DefaultMaxRequestSize = 1 << 20
	MaxUploadSize         = 25 * 1024 * 1024

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second
	ServerMaxHeaderBytes    = 1 << 20

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultRequestTimeout = 5 * time.Second
	DefaultTokenTTL       = 2 * time.Hour
	ResetTokenTTL         = 1 * time.Hour
	SecretMinLength       = 16

	SMTPCircuitBreakerThreshold = 5
	SMTPCircuitBreakerTimeout   = 15 * time.Second
	SMTPCircuitBreakerReset     = 1 * time.Minute

	RateLimitLoginRequestsPerSecond = 1
	RateLimitLoginBurst             = 5
	RateLimitCleanupInterval        = 5 * time.Minute

	SEOTitleTemplate        = "lingo+ | %s | blog"
	SEODescriptionMaxLength = 160

	MailDefaultFromAddress = "info@lmail.lingo-plus.ir"
	MailDefaultFromName    = "lingo+"

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"

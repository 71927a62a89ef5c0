package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

func DefaultServerConfig(port string) ServerConfig {
	return ServerConfig{
		Addr:              ":" + port,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		ReadTimeout:       constants.ServerReadTimeout,
		WriteTimeout:      constants.ServerWriteTimeout,
		IdleTimeout:       constants.ServerIdleTimeout,
		MaxHeaderBytes:    constants.ServerMaxHeaderBytes,
	}
}

// NewServer builds the http.Server. When appLog is set, errors the server
// itself reports (TLS handshakes, broken connections) go through it.
func NewServer(cfg ServerConfig, handler http.Handler, appLog *logger.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	if appLog != nil {
		srv.ErrorLog = log.New(errorLogWriter{appLog}, "", 0)
	}
	return srv
}

type errorLogWriter struct {
	log *logger.Logger
}

func (w errorLogWriter) Write(p []byte) (int, error) {
	w.log.Warnf("http server: %s", strings.TrimSpace(string(p)))
	return len(p), nil
}

package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/config"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/resilience"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const (
	transportSMTP = "smtp"
	transportLog  = "log"
)

var ErrNoRecipients = errors.New("message has no recipients")

type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when a host is configured and a logging mailer
// otherwise, so local setups work without a relay.
func New(cfg config.SMTPConfig, log *logger.Logger) (Mailer, error) {
	if !cfg.Enabled() {
		log.Warn("SMTP_HOST is not set, outgoing mail will only be logged")
		return NewLogMailer(log), nil
	}
	return NewSMTPMailer(cfg, log)
}

type SMTPMailer struct {
	client   *mail.Client
	fromName string
	fromAddr string
	breaker  *resilience.CircuitBreaker
	log      *logger.Logger
	send     func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPMailer(cfg config.SMTPConfig, log *logger.Logger) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(constants.SMTPCircuitBreakerTimeout),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	m := &SMTPMailer{
		client:   client,
		fromName: orDefault(cfg.FromName, constants.MailDefaultFromName),
		fromAddr: orDefault(cfg.FromAddress, constants.MailDefaultFromAddress),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  constants.SMTPCircuitBreakerThreshold,
			Timeout:    constants.SMTPCircuitBreakerTimeout,
			ResetAfter: constants.SMTPCircuitBreakerReset,
			Name:       transportSMTP,
			IsFailure:  isTransportFailure,
			Logger:     log,
		}),
		log: log,
	}
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		return client.DialAndSendWithContext(ctx, msg)
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := buildMsg(m.fromName, m.fromAddr, msg)
	if err != nil {
		metrics.MailSentTotal.WithLabelValues(transportSMTP, "invalid").Inc()
		return err
	}

	err = m.breaker.Call(ctx, func(ctx context.Context) error {
		return m.send(ctx, built)
	})
	if err != nil {
		metrics.MailSentTotal.WithLabelValues(transportSMTP, "error").Inc()
		m.log.WithFields(ctx, logger.Fields{
			"to":      strings.Join(msg.To, ","),
			"subject": msg.Subject,
		}).Errorf("failed to send mail: %v", err)
		return fmt.Errorf("failed to send mail: %w", err)
	}

	metrics.MailSentTotal.WithLabelValues(transportSMTP, "success").Inc()
	m.log.WithFields(ctx, logger.Fields{"subject": msg.Subject}).Debug("mail sent")
	return nil
}

func buildMsg(fromName, fromAddr string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	m := mail.NewMsg()
	if err := m.FromFormat(fromName, fromAddr); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}

// Context cancellation by the caller is not the relay's fault.
func isTransportFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, commonerrors.ErrCircuitOpen)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.log.WithFields(ctx, logger.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Infof("mail not sent (no SMTP relay configured): %s", msg.Text)
	metrics.MailSentTotal.WithLabelValues(transportLog, "success").Inc()
	return nil
}

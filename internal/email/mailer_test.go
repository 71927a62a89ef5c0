package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/config"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(buf, "test", "debug")
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	var buf bytes.Buffer

	m, err := New(config.SMTPConfig{}, testLogger(&buf))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("expected *LogMailer, got %T", m)
	}

	if err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi", Text: "body"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "hi") {
		t.Errorf("expected subject in log output, got %q", buf.String())
	}
}

func TestNew_SMTPMailerUsesDefaultSender(t *testing.T) {
	var buf bytes.Buffer

	m, err := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p"}, testLogger(&buf))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	smtp, ok := m.(*SMTPMailer)
	if !ok {
		t.Fatalf("expected *SMTPMailer, got %T", m)
	}
	if smtp.fromAddr != "info@lmail.lingo-plus.ir" || smtp.fromName != "lingo+" {
		t.Errorf("unexpected sender %q <%s>", smtp.fromName, smtp.fromAddr)
	}
}

func TestBuildMsg(t *testing.T) {
	msg, err := buildMsg("lingo+", "info@lmail.lingo-plus.ir", Message{
		To:      []string{"dev@payloadcms.com"},
		Subject: "Reset your password",
		Text:    "token",
		HTML:    "<p>token</p>",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	to := msg.GetToString()
	if len(to) != 1 || !strings.Contains(to[0], "dev@payloadcms.com") {
		t.Errorf("unexpected recipients %v", to)
	}
	subject := msg.GetGenHeader(mail.HeaderSubject)
	if len(subject) != 1 || subject[0] != "Reset your password" {
		t.Errorf("unexpected subject %v", subject)
	}
	from := msg.GetFromString()
	if len(from) != 1 || !strings.Contains(from[0], "info@lmail.lingo-plus.ir") {
		t.Errorf("unexpected from %v", from)
	}
}

func TestBuildMsg_Invalid(t *testing.T) {
	if _, err := buildMsg("x", "info@example.com", Message{}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
	if _, err := buildMsg("x", "info@example.com", Message{To: []string{"not an address"}}); err == nil {
		t.Error("expected invalid recipient to be rejected")
	}
}

func TestSMTPMailer_OpensCircuitAfterFailures(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, testLogger(&buf))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	calls := 0
	relayDown := errors.New("connection refused")
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		calls++
		return relayDown
	}

	msg := Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"}
	for i := 0; i < 5; i++ {
		if err := m.Send(context.Background(), msg); !errors.Is(err, relayDown) {
			t.Fatalf("send %d: expected relay error, got %v", i, err)
		}
	}

	if err := m.Send(context.Background(), msg); !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 relay calls, got %d", calls)
	}
}

func TestSMTPMailer_DefaultTransportReportsDialFailure(t *testing.T) {
	var buf bytes.Buffer

	m, err := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1}, testLogger(&buf))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.send == nil {
		t.Fatal("expected default transport to be set")
	}

	err = m.Send(context.Background(), Message{To: []string{"dev@payloadcms.com"}, Subject: "hi", Text: "body"})
	if err == nil {
		t.Fatal("expected dial error from closed port")
	}
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Errorf("expected transport error, got open circuit")
	}
}

package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	authhttp "github.com/AlibekovAA/lingo-cms/backend/internal/auth/http"
	authservice "github.com/AlibekovAA/lingo-cms/backend/internal/auth/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/repository"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/schema"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/email"
	"github.com/AlibekovAA/lingo-cms/backend/internal/richtext"
	"github.com/AlibekovAA/lingo-cms/backend/internal/seed"
)

const testSecret = "test-secret-0123456789"

type recordingMailer struct {
	sent []email.Message
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newTestMux(t *testing.T, autoLogin *authhttp.AutoLogin) (*http.ServeMux, *recordingMailer) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard, "test", "error")

	repo, err := repository.OpenSQLite(ctx, repository.MemoryPath, log)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	registry, err := schema.Default()
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	files, err := service.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create disk store: %v", err)
	}

	hasher := &commoncrypto.BcryptHasher{Cost: bcrypt.MinCost}
	ids := commoncrypto.NewUUIDGenerator()
	svc := service.NewCollectionService(registry, repo, hasher, ids, richtext.EditorFeatures(), nil, files, clock.NewRealClock(), log)

	if err := seed.EnsureAdminSeeded(ctx, svc, seed.DefaultCredentials(), log); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	mailer := &recordingMailer{}
	auth := authservice.NewAuthService(
		svc,
		hasher,
		authservice.NewTokenIssuer(testSecret, ids, clock.NewRealClock()),
		mailer,
		time.Hour,
		"http://localhost:3000",
		log,
	)
	limiter := commonhttp.NewRateLimiter("test", 100, 100)

	mux := http.NewServeMux()
	authhttp.NewHandler(auth, testSecret, autoLogin, limiter, 5*time.Second, log).Register(mux, registry.AuthCollections())
	return mux, mailer
}

func serve(mux *http.ServeMux, method, target, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func login(t *testing.T, mux *http.ServeMux, password string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(mux, http.MethodPost, "/api/users/login", `{"email":"dev@payloadcms.com","password":"`+password+`"}`, "")
}

func TestLoginAndMe(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := login(t, mux, "test")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != "Auth Passed" {
		t.Errorf("expected Auth Passed, got %v", body["message"])
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}
	user := body["user"].(map[string]any)
	if _, ok := user["hash"]; ok {
		t.Error("expected hash to be stripped from login response")
	}

	rec = serve(mux, http.MethodGet, "/api/users/me", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	me := decode(t, rec)["user"].(map[string]any)
	if me["email"] != "dev@payloadcms.com" {
		t.Errorf("expected seeded user, got %v", me["email"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := login(t, mux, "nope")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if code := decode(t, rec)["code"]; code != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", code)
	}
}

func TestMe_Anonymous(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := serve(mux, http.MethodGet, "/api/users/me", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if user, ok := decode(t, rec)["user"]; !ok || user != nil {
		t.Errorf("expected user null, got %v", user)
	}

	rec = serve(mux, http.MethodGet, "/api/users/me", "", "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for invalid token, got %d", rec.Code)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	mux, mailer := newTestMux(t, nil)

	rec := serve(mux, http.MethodPost, "/api/users/forgot-password", `{"email":"dev@payloadcms.com"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mailer.sent))
	}

	const marker = "/admin/reset/"
	text := mailer.sent[0].Text
	idx := strings.Index(text, marker)
	if idx < 0 {
		t.Fatalf("expected reset link in %q", text)
	}
	resetToken := strings.Fields(text[idx+len(marker):])[0]

	rec = serve(mux, http.MethodPost, "/api/users/reset-password", `{"token":"`+resetToken+`","password":"changed"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(mux, http.MethodPost, "/api/users/reset-password", `{"token":"`+resetToken+`","password":"again"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected reused reset token to be rejected with 400, got %d", rec.Code)
	}

	if rec := login(t, mux, "test"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected old password to fail, got %d", rec.Code)
	}
	if rec := login(t, mux, "changed"); rec.Code != http.StatusOK {
		t.Errorf("expected new password to work, got %d", rec.Code)
	}

	rec = serve(mux, http.MethodGet, "/api/users/me", "", resetToken)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected reset token to be rejected as access token, got %d", rec.Code)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	mux, mailer := newTestMux(t, nil)

	rec := serve(mux, http.MethodPost, "/api/users/forgot-password", `{"email":"nobody@example.com"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no email, got %d", len(mailer.sent))
	}
}

func TestAdminConfig(t *testing.T) {
	mux, _ := newTestMux(t, nil)
	rec := serve(mux, http.MethodGet, "/api/admin/config", "", "")
	if got := decode(t, rec)["autoLogin"]; got != false {
		t.Errorf("expected autoLogin false, got %v", got)
	}

	mux, _ = newTestMux(t, &authhttp.AutoLogin{Email: "dev@payloadcms.com", Password: "test", PrefillOnly: true})
	rec = serve(mux, http.MethodGet, "/api/admin/config", "", "")
	auto, ok := decode(t, rec)["autoLogin"].(map[string]any)
	if !ok {
		t.Fatalf("expected autoLogin object, got %s", rec.Body.String())
	}
	if auto["email"] != "dev@payloadcms.com" || auto["prefillOnly"] != true {
		t.Errorf("unexpected autoLogin %v", auto)
	}
}

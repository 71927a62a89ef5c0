package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	authservice "github.com/AlibekovAA/lingo-cms/backend/internal/auth/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	collectionservice "github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/email"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mockUserStore struct {
	findAuthByEmailFunc func(ctx context.Context, collection, email string) (domain.Document, error)
	findByIDFunc        func(ctx context.Context, args collectionservice.FindByIDArgs) (domain.Document, error)
	updateFunc          func(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error)
}

func (m *mockUserStore) FindAuthByEmail(ctx context.Context, collection, email string) (domain.Document, error) {
	if m.findAuthByEmailFunc != nil {
		return m.findAuthByEmailFunc(ctx, collection, email)
	}
	return domain.Document{}, commonerrors.ErrDocumentNotFound
}

func (m *mockUserStore) FindByID(ctx context.Context, args collectionservice.FindByIDArgs) (domain.Document, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, args)
	}
	return domain.Document{}, commonerrors.ErrDocumentNotFound
}

func (m *mockUserStore) Update(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, args)
	}
	return domain.Document{}, commonerrors.ErrDocumentNotFound
}

type mockMailer struct {
	sendFunc func(ctx context.Context, msg email.Message) error
	sent     []email.Message
}

func (m *mockMailer) Send(ctx context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return nil
}

type fixture struct {
	svc    *authservice.AuthService
	tokens *authservice.TokenIssuer
	store  *mockUserStore
	mailer *mockMailer
	user   domain.Document
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hasher := &commoncrypto.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("test")
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	user := domain.Document{
		ID:         "user-1",
		Collection: "users",
		Data:       map[string]any{"email": "dev@payloadcms.com", "hash": hash},
	}
	store := &mockUserStore{
		findAuthByEmailFunc: func(ctx context.Context, collection, address string) (domain.Document, error) {
			if collection == "users" && strings.EqualFold(address, "dev@payloadcms.com") {
				return user, nil
			}
			return domain.Document{}, commonerrors.ErrDocumentNotFound
		},
	}
	mailer := &mockMailer{}
	tokens := authservice.NewTokenIssuer(testSecret, commoncrypto.NewUUIDGenerator(), clock.NewRealClock())
	log := logger.NewWithWriter(io.Discard, "test", "error")

	svc := authservice.NewAuthService(store, hasher, tokens, mailer, time.Hour, "https://cms.lingo-plus.ir/", log)
	return fixture{svc: svc, tokens: tokens, store: store, mailer: mailer, user: user}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Login(context.Background(), authservice.LoginInput{
		Collection: "users",
		Email:      "dev@payloadcms.com",
		Password:   "test",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := result.User.Data["hash"]; ok {
		t.Error("expected hash to be stripped from login result")
	}

	claims, err := jwtverify.ParseToken(result.Token, []byte(testSecret))
	if err != nil {
		t.Fatalf("expected token to parse, got %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "dev@payloadcms.com" || claims.Collection != "users" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.Purpose != jwtverify.PurposeAccess || claims.JTI == "" {
		t.Errorf("expected access token with jti, got %+v", claims)
	}
	if d := time.Until(result.ExpiresAt); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expected expiry about an hour away, got %v", d)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name     string
		input    authservice.LoginInput
		expected error
	}{
		{"wrong password", authservice.LoginInput{Collection: "users", Email: "dev@payloadcms.com", Password: "nope"}, commonerrors.ErrInvalidCredentials},
		{"unknown user", authservice.LoginInput{Collection: "users", Email: "ghost@example.com", Password: "test"}, commonerrors.ErrInvalidCredentials},
		{"missing password", authservice.LoginInput{Collection: "users", Email: "dev@payloadcms.com"}, commonerrors.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Login(context.Background(), tc.input); !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestLogin_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("database is down")
	f.store.findAuthByEmailFunc = func(ctx context.Context, collection, address string) (domain.Document, error) {
		return domain.Document{}, storeErr
	}

	_, err := f.svc.Login(context.Background(), authservice.LoginInput{Collection: "users", Email: "dev@payloadcms.com", Password: "test"})
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.store.findByIDFunc = func(ctx context.Context, args collectionservice.FindByIDArgs) (domain.Document, error) {
		if !args.OverrideAccess {
			t.Error("expected me lookup to override access")
		}
		if args.ID == "user-1" {
			return domain.Document{ID: "user-1", Collection: "users"}, nil
		}
		return domain.Document{}, commonerrors.ErrDocumentNotFound
	}

	user, err := f.svc.Me(context.Background(), jwtverify.Claims{UserID: "user-1", Collection: "users"})
	if err != nil || user.ID != "user-1" {
		t.Fatalf("expected user-1, got %v / %v", user.ID, err)
	}

	if _, err := f.svc.Me(context.Background(), jwtverify.Claims{UserID: "gone", Collection: "users"}); !errors.Is(err, commonerrors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for deleted user, got %v", err)
	}
}

func TestForgotPassword_SendsResetLink(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.ForgotPassword(context.Background(), "users", "dev@payloadcms.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(f.mailer.sent))
	}
	msg := f.mailer.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "dev@payloadcms.com" {
		t.Errorf("unexpected recipients %v", msg.To)
	}

	const prefix = "https://cms.lingo-plus.ir/admin/reset/"
	idx := strings.Index(msg.Text, prefix)
	if idx == -1 {
		t.Fatalf("expected reset link in body, got %q", msg.Text)
	}
	token := strings.Fields(msg.Text[idx+len(prefix):])[0]

	claims, err := f.tokens.ParseToken(token)
	if err != nil {
		t.Fatalf("expected reset token to parse, got %v", err)
	}
	if claims.Purpose != jwtverify.PurposeReset {
		t.Errorf("expected reset purpose, got %s", claims.Purpose)
	}
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.ForgotPassword(context.Background(), "users", "ghost@example.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Errorf("expected no mail, got %d", len(f.mailer.sent))
	}
}

func TestForgotPassword_CircuitOpen(t *testing.T) {
	f := newFixture(t)
	f.mailer.sendFunc = func(ctx context.Context, msg email.Message) error {
		return commonerrors.ErrCircuitOpen
	}

	err := f.svc.ForgotPassword(context.Background(), "users", "dev@payloadcms.com")
	if !errors.Is(err, authservice.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)

	var updated collectionservice.UpdateArgs
	f.store.updateFunc = func(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error) {
		updated = args
		return domain.Document{ID: args.ID, Collection: args.Collection, Data: map[string]any{"email": "dev@payloadcms.com"}}, nil
	}

	resetToken, _, err := f.tokens.Issue(f.user, jwtverify.PurposeReset, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue reset token: %v", err)
	}

	result, err := f.svc.ResetPassword(context.Background(), authservice.ResetPasswordInput{Token: resetToken, Password: "new"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.ID != "user-1" || updated.Data["password"] != "new" || !updated.OverrideAccess {
		t.Errorf("unexpected update args %+v", updated)
	}
	if result.Token == "" {
		t.Error("expected a fresh access token")
	}

	accessToken, _, _ := f.tokens.Issue(f.user, jwtverify.PurposeAccess, time.Hour)
	if _, err := f.svc.ResetPassword(context.Background(), authservice.ResetPasswordInput{Token: accessToken, Password: "x"}); !errors.Is(err, authservice.ErrResetTokenExpired) {
		t.Errorf("expected access token to be rejected for reset, got %v", err)
	}
}

func TestResetPassword_TokenWorksOnce(t *testing.T) {
	f := newFixture(t)
	hasher := &commoncrypto.BcryptHasher{Cost: bcrypt.MinCost}

	current := f.user
	f.store.findAuthByEmailFunc = func(ctx context.Context, collection, address string) (domain.Document, error) {
		return current, nil
	}
	updates := 0
	f.store.updateFunc = func(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error) {
		updates++
		hash, err := hasher.Hash(args.Data["password"].(string))
		if err != nil {
			return domain.Document{}, err
		}
		current = domain.Document{ID: current.ID, Collection: current.Collection, Data: map[string]any{"email": "dev@payloadcms.com", "hash": hash}}
		return current, nil
	}

	resetToken, _, err := f.tokens.Issue(f.user, jwtverify.PurposeReset, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue reset token: %v", err)
	}

	if _, err := f.svc.ResetPassword(context.Background(), authservice.ResetPasswordInput{Token: resetToken, Password: "first"}); err != nil {
		t.Fatalf("expected first reset to succeed, got %v", err)
	}
	if _, err := f.svc.ResetPassword(context.Background(), authservice.ResetPasswordInput{Token: resetToken, Password: "second"}); !errors.Is(err, authservice.ErrResetTokenExpired) {
		t.Errorf("expected ErrResetTokenExpired on reuse, got %v", err)
	}
	if updates != 1 {
		t.Errorf("expected 1 password update, got %d", updates)
	}
}

func TestResetPassword_TokenForOtherUserRejected(t *testing.T) {
	f := newFixture(t)
	f.store.updateFunc = func(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error) {
		t.Fatal("update must not be called")
		return domain.Document{}, nil
	}

	other := f.user
	other.ID = "user-2"
	resetToken, _, _ := f.tokens.Issue(other, jwtverify.PurposeReset, time.Hour)

	if _, err := f.svc.ResetPassword(context.Background(), authservice.ResetPasswordInput{Token: resetToken, Password: "x"}); !errors.Is(err, authservice.ErrResetTokenExpired) {
		t.Errorf("expected ErrResetTokenExpired, got %v", err)
	}
}

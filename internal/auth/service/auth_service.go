package service

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	collectionservice "github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/email"
)

// UserStore is the slice of the local API authentication relies on.
type UserStore interface {
	FindAuthByEmail(ctx context.Context, collection, email string) (domain.Document, error)
	FindByID(ctx context.Context, args collectionservice.FindByIDArgs) (domain.Document, error)
	Update(ctx context.Context, args collectionservice.UpdateArgs) (domain.Document, error)
}

type AuthService struct {
	users     UserStore
	hasher    commoncrypto.PasswordHasher
	tokens    *TokenIssuer
	mailer    email.Mailer
	tokenTTL  time.Duration
	serverURL string
	log       *logger.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users UserStore,
	hasher commoncrypto.PasswordHasher,
	tokens *TokenIssuer,
	mailer email.Mailer,
	tokenTTL time.Duration,
	serverURL string,
	log *logger.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = constants.DefaultTokenTTL
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		tokenTTL:  tokenTTL,
		serverURL: strings.TrimRight(serverURL, "/"),
		log:       log,
	}
}

type LoginInput struct {
	Collection string
	Email      string
	Password   string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.Document
}

type ResetPasswordInput struct {
	Token    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"email":  input.Email,
		"action": "login_attempt",
	}).Debug("login attempt")

	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		recordLogin("invalid")
		return LoginResult{}, commonerrors.ErrValidation.WithDetails(map[string]any{"field": "email", "reason": "email and password are required"})
	}

	user, err := s.users.FindAuthByEmail(ctx, input.Collection, input.Email)
	if err != nil {
		if errors.Is(err, commonerrors.ErrDocumentNotFound) {
			// Spend the same bcrypt time as a real mismatch.
			_ = s.hasher.Compare(s.timingHash(), input.Password)
			recordLogin("unknown_user")
			s.log.WithFields(ctx, logger.Fields{
				"email":  input.Email,
				"action": "login_user_not_found",
			}).Warn("login failed: user not found")
			return LoginResult{}, ErrInvalidCredentials
		}
		recordLogin("error")
		return LoginResult{}, err
	}

	if err := s.hasher.Compare(user.String("hash"), input.Password); err != nil {
		recordLogin("bad_password")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": user.ID,
			"action":  "login_invalid_password",
		}).Warn("login failed: invalid password")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user, jwtverify.PurposeAccess, s.tokenTTL)
	if err != nil {
		recordLogin("error")
		return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	recordLogin("success")
	s.log.WithFields(ctx, logger.Fields{
		"user_id": user.ID,
		"action":  "login_success",
	}).Info("login successful")

	return LoginResult{Token: token, ExpiresAt: expiresAt, User: withoutHash(user)}, nil
}

// Me loads the user the claims were issued to. A deleted user yields
// ErrUnauthorized so stale tokens stop working.
func (s *AuthService) Me(ctx context.Context, claims jwtverify.Claims) (domain.Document, error) {
	user, err := s.users.FindByID(ctx, collectionservice.FindByIDArgs{
		Collection:     claims.Collection,
		ID:             claims.UserID,
		OverrideAccess: true,
	})
	if errors.Is(err, commonerrors.ErrDocumentNotFound) {
		return domain.Document{}, commonerrors.ErrUnauthorized
	}
	return user, err
}

// ForgotPassword mails a reset link when the address belongs to a user. It
// reports success for unknown addresses so callers cannot enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, collection, address string) error {
	user, err := s.users.FindAuthByEmail(ctx, collection, address)
	if errors.Is(err, commonerrors.ErrDocumentNotFound) {
		s.log.WithFields(ctx, logger.Fields{
			"action": "forgot_password_unknown_email",
		}).Debug("forgot password for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, _, err := s.tokens.Issue(user, jwtverify.PurposeReset, constants.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	link := fmt.Sprintf("%s/admin/reset/%s", s.serverURL, token)
	err = s.mailer.Send(ctx, email.Message{
		To:      []string{user.String("email")},
		Subject: "Reset your password",
		Text: "You are receiving this because you (or someone else) have requested the reset of the password for your account. " +
			"Please open the following link to complete the process: " + link +
			"\n\nIf you did not request this, please ignore this email and your password will remain unchanged.",
		HTML: fmt.Sprintf(`<p>You are receiving this because you (or someone else) have requested the reset of the password for your account.</p>`+
			`<p><a href="%s">Reset your password</a></p>`+
			`<p>If you did not request this, please ignore this email and your password will remain unchanged.</p>`, link),
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrCircuitOpen) {
			return ErrServiceUnavailable.WithCause(err)
		}
		return err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": user.ID,
		"action":  "forgot_password_sent",
	}).Info("password reset email sent")
	return nil
}

// ResetPassword sets a new password from a reset token and logs the user in.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) (LoginResult, error) {
	claims, err := s.tokens.ParseToken(input.Token)
	if err != nil || claims.Purpose != jwtverify.PurposeReset {
		return LoginResult{}, ErrResetTokenExpired
	}
	if input.Password == "" {
		return LoginResult{}, commonerrors.ErrValidation.WithDetails(map[string]any{"field": "password", "reason": "required"})
	}

	current, err := s.users.FindAuthByEmail(ctx, claims.Collection, claims.Email)
	if errors.Is(err, commonerrors.ErrDocumentNotFound) {
		return LoginResult{}, ErrResetTokenExpired
	}
	if err != nil {
		return LoginResult{}, err
	}
	// A reset token works once: the password it replaces must still be current.
	if current.ID != claims.UserID || claims.CredentialVersion == "" ||
		!hmac.Equal([]byte(claims.CredentialVersion), []byte(s.tokens.CredentialVersion(current.String("hash")))) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.UserID,
			"action":  "password_reset_stale_token",
		}).Warn("password reset rejected: token already used or superseded")
		return LoginResult{}, ErrResetTokenExpired
	}

	user, err := s.users.Update(ctx, collectionservice.UpdateArgs{
		Collection:     claims.Collection,
		ID:             claims.UserID,
		Data:           map[string]any{"password": input.Password},
		OverrideAccess: true,
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrDocumentNotFound) {
			return LoginResult{}, ErrResetTokenExpired
		}
		return LoginResult{}, err
	}

	token, expiresAt, err := s.tokens.Issue(user, jwtverify.PurposeAccess, s.tokenTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": user.ID,
		"action":  "password_reset",
	}).Info("password reset")
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("timing-equaliser")
	})
	return s.dummyHash
}

func withoutHash(doc domain.Document) domain.Document {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		if k != "hash" {
			data[k] = v
		}
	}
	doc.Data = data
	return doc
}

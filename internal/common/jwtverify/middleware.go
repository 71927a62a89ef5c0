package jwtverify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

const (
	PurposeAccess = "access"
	PurposeReset  = "reset"
)

var ErrWrongPurpose = errors.New("token was issued for another purpose")

type Claims struct {
	UserID     string
	Email      string
	Collection string
	Purpose    string
	JTI        string
	ExpiresAt  time.Time

	// CredentialVersion pins a reset token to the password it may replace.
	CredentialVersion string
}

type contextKey string

const claimsKey contextKey = "jwt_claims"

// Middleware rejects requests without a valid access token.
func Middleware(secret string, log *logger.Logger) func(next http.Handler) http.Handler {
	return middleware([]byte(secret), log, true)
}

// Optional attaches claims when a token is sent but lets anonymous requests
// through. A token that is present but invalid is still rejected.
func Optional(secret string, log *logger.Logger) func(next http.Handler) http.Handler {
	return middleware([]byte(secret), log, false)
}

func middleware(secret []byte, log *logger.Logger, required bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				log.Warnf("jwt auth failed path=%s: missing or invalid authorization header", r.URL.Path)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization,
					"missing or invalid authorization", nil, commonhttp.TraceIDFromContext(r.Context()))
				return
			}

			claims, err := ParseToken(tokenString, secret)
			if err == nil && claims.Purpose != PurposeAccess {
				err = ErrWrongPurpose
			}
			if err != nil {
				log.Warnf("jwt auth failed path=%s: %v", r.URL.Path, err)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken,
					"invalid token", nil, commonhttp.TraceIDFromContext(r.Context()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken accepts both "Bearer" and the "JWT" scheme admin clients send.
func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	for _, scheme := range []string{"Bearer ", "JWT "} {
		if strings.HasPrefix(raw, scheme) {
			token := strings.TrimSpace(strings.TrimPrefix(raw, scheme))
			return token, token != ""
		}
	}
	return "", false
}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

func ParseToken(tokenString string, secret []byte) (Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims type")
	}

	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	collection, _ := mapClaims["collection"].(string)
	if sub == "" || email == "" || collection == "" {
		return Claims{}, errors.New("missing sub, email or collection claims")
	}

	purpose, _ := mapClaims["purpose"].(string)
	if purpose == "" {
		purpose = PurposeAccess
	}
	jti, _ := mapClaims["jti"].(string)
	credentialVersion, _ := mapClaims["cv"].(string)

	var expiresAt time.Time
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return Claims{
		UserID:     sub,
		Email:      email,
		Collection: collection,
		Purpose:    purpose,
		JTI:        jti,
		ExpiresAt:  expiresAt,

		CredentialVersion: credentialVersion,
	}, nil
}

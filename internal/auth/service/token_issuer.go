package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/jwtverify"
)

type TokenIssuer struct {
	jwtSecret   []byte
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewTokenIssuer(jwtSecret string, idGenerator commoncrypto.IDGenerator, clock clock.Clock) *TokenIssuer {
	return &TokenIssuer{
		jwtSecret:   []byte(jwtSecret),
		idGenerator: idGenerator,
		clock:       clock,
	}
}

// Issue signs a token for user valid for ttl and returns it with its expiry.
func (ti *TokenIssuer) Issue(user domain.Document, purpose string, ttl time.Duration) (string, time.Time, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := ti.clock.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":        user.ID,
		"email":      user.String("email"),
		"collection": user.Collection,
		"jti":        jti,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}
	if purpose != jwtverify.PurposeAccess {
		claims["purpose"] = purpose
	}
	if purpose == jwtverify.PurposeReset {
		claims["cv"] = ti.CredentialVersion(user.String("hash"))
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := t.SignedString(ti.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	incrementTokensIssued(purpose)
	return tokenString, expiresAt, nil
}

func (ti *TokenIssuer) ParseToken(tokenString string) (jwtverify.Claims, error) {
	return jwtverify.ParseToken(tokenString, ti.jwtSecret)
}

// CredentialVersion fingerprints a stored password hash. Any password change
// yields a new value, which retires reset tokens issued before it.
func (ti *TokenIssuer) CredentialVersion(hash string) string {
	mac := hmac.New(sha256.New, ti.jwtSecret)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

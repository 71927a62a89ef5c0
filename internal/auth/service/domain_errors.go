package service

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
)

var (
	ErrInvalidCredentials = commonerrors.ErrInvalidCredentials
	ErrInvalidToken       = commonerrors.ErrInvalidToken

	ErrResetTokenExpired = commonerrors.NewDomainError(
		"RESET_TOKEN_INVALID",
		commonerrors.CategoryUnauthorized,
		http.StatusBadRequest,
		"the password reset token is invalid or has expired",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)

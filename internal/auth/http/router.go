package http

import (
	"net/http"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/auth/service"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string         `json:"message,omitempty"`
	Token   string         `json:"token,omitempty"`
	Exp     int64          `json:"exp,omitempty"`
	User    map[string]any `json:"user"`
}

// AutoLogin is the admin login prefill. A nil value disables it.
type AutoLogin struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PrefillOnly bool   `json:"prefillOnly"`
}

type Handler struct {
	auth         *service.AuthService
	secret       string
	autoLogin    *AutoLogin
	loginLimiter *commonhttp.RateLimiter
	timeout      time.Duration
	errors       *commonhttp.ErrorHandler
	log          *logger.Logger
}

func NewHandler(
	auth *service.AuthService,
	secret string,
	autoLogin *AutoLogin,
	loginLimiter *commonhttp.RateLimiter,
	timeout time.Duration,
	log *logger.Logger,
) *Handler {
	return &Handler{
		auth:         auth,
		secret:       secret,
		autoLogin:    autoLogin,
		loginLimiter: loginLimiter,
		timeout:      timeout,
		errors:       commonhttp.NewErrorHandler(log),
		log:          log,
	}
}

// Register mounts the auth endpoints of every auth collection on mux.
func (h *Handler) Register(mux *http.ServeMux, authCollections []string) {
	withTimeout := commonhttp.WithTimeout(h.timeout)
	optional := jwtverify.Optional(h.secret, h.log)

	for _, slug := range authCollections {
		base := "/api/" + slug
		mux.HandleFunc("POST "+base+"/login", h.loginLimiter.Wrap(withTimeout(h.login(slug))))
		mux.Handle("GET "+base+"/me", optional(withTimeout(h.me)))
		mux.HandleFunc("POST "+base+"/forgot-password", h.loginLimiter.Wrap(withTimeout(h.forgotPassword(slug))))
		mux.HandleFunc("POST "+base+"/reset-password", withTimeout(h.resetPassword))
	}
	mux.HandleFunc("GET /api/admin/config", h.adminConfig)
}

func (h *Handler) login(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := commonhttp.DecodeJSON(r, &req); err != nil {
			h.log.Warnf("login failed: invalid json: %v", err)
			h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
			return
		}

		result, err := h.auth.Login(r.Context(), service.LoginInput{
			Collection: collection,
			Email:      req.Email,
			Password:   req.Password,
		})
		if err != nil {
			h.errors.HandleError(w, r, err)
			return
		}

		commonhttp.WriteJSON(w, http.StatusOK, authResponse{
			Message: "Auth Passed",
			Token:   result.Token,
			Exp:     result.ExpiresAt.Unix(),
			User:    result.User.Flatten(),
		})
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteJSON(w, http.StatusOK, authResponse{User: nil})
		return
	}

	user, err := h.auth.Me(r.Context(), claims)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, authResponse{
		User: user.Flatten(),
		Exp:  claims.ExpiresAt.Unix(),
	})
}

func (h *Handler) forgotPassword(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := commonhttp.DecodeJSON(r, &req); err != nil {
			h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
			return
		}

		if err := h.auth.ForgotPassword(r.Context(), collection, req.Email); err != nil {
			h.errors.HandleError(w, r, err)
			return
		}

		commonhttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Success"})
	}
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
		return
	}

	result, err := h.auth.ResetPassword(r.Context(), service.ResetPasswordInput{
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, authResponse{
		Message: "Password reset successfully.",
		Token:   result.Token,
		Exp:     result.ExpiresAt.Unix(),
		User:    result.User.Flatten(),
	})
}

func (h *Handler) adminConfig(w http.ResponseWriter, r *http.Request) {
	var autoLogin any = false
	if h.autoLogin != nil {
		autoLogin = h.autoLogin
	}
	commonhttp.WriteJSON(w, http.StatusOK, map[string]any{"autoLogin": autoLogin})
}

package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "error")
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) commonhttp.ErrorEnvelope {
	t.Helper()
	var env commonhttp.ErrorEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}

func TestErrorHandler_DomainError(t *testing.T) {
	h := commonhttp.NewErrorHandler(testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/pages", nil)

	h.HandleError(w, r, commonerrors.ErrValidation.WithDetails(map[string]any{"field": "title"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w.Body)
	if env.Code != "VALIDATION_FAILED" {
		t.Errorf("expected code VALIDATION_FAILED, got %s", env.Code)
	}
	if env.Details["field"] != "title" {
		t.Errorf("expected details to carry field, got %v", env.Details)
	}
}

func TestErrorHandler_WrappedDomainError(t *testing.T) {
	h := commonhttp.NewErrorHandler(testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/pages/1", nil)

	h.HandleError(w, r, errors.Join(errors.New("context"), commonerrors.ErrDocumentNotFound))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestErrorHandler_UnknownError(t *testing.T) {
	h := commonhttp.NewErrorHandler(testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/pages", nil)

	h.HandleError(w, r, errors.New("connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	env := decodeEnvelope(t, w.Body)
	if strings.Contains(env.Message, "connection reset") {
		t.Error("expected internal error details not to leak")
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := commonhttp.NewRateLimiter("login", 0.001, 2)
	handler := rl.Wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		handler(w, r)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected [200 200 429], got %v", codes)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	handler(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("expected other client to be allowed, got %d", w.Code)
	}
}

func TestMaxRequestSizeMiddleware(t *testing.T) {
	mw := commonhttp.MaxRequestSizeMiddleware(4, map[string]int64{"/api/media": 16})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	testCases := []struct {
		path     string
		body     string
		expected int
	}{
		{"/api/pages", "abc", http.StatusOK},
		{"/api/pages", "abcdefgh", http.StatusRequestEntityTooLarge},
		{"/api/media", "abcdefgh", http.StatusOK},
	}

	for _, tc := range testCases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		handler.ServeHTTP(w, r)
		if w.Code != tc.expected {
			t.Errorf("%s %q: expected %d, got %d", tc.path, tc.body, tc.expected, w.Code)
		}
	}
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	handler := commonhttp.TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = commonhttp.TraceIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Trace-ID", "abc")
	handler.ServeHTTP(w, r)

	if seen != "abc" || w.Header().Get("X-Trace-ID") != "abc" {
		t.Errorf("expected trace id abc to propagate, got %q", seen)
	}
}

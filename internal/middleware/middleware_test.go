package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4d-assistant/book-chat/pkg/logger"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth(t *testing.T) {
	var seenUser string
	h := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + signToken(t, "other", "u1"), want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signToken(t, "secret", "u1"), want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "u1", seenUser)
}

func TestLogging_PropagatesCorrelationIDAndFlush(t *testing.T) {
	var seen string
	var flushable bool
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		_, flushable = w.(http.Flusher)
		w.Write([]byte("data: {}\n\n"))
		w.(http.Flusher).Flush()
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", rec.Header().Get("X-Correlation-ID"))
	assert.True(t, flushable)
	assert.True(t, rec.Flushed)
}

func TestLogging_GeneratesCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("What is chapter two about?"))
	assert.ErrorIs(t, ValidateMessage(strings.Repeat("a", MaxMessageLength+1)), ErrMessageTooLong)
	assert.ErrorIs(t, ValidateMessage(strings.Repeat("é", MaxMessageLength/2+1)), ErrMessageTooLong)
}

func TestValidateThreadID(t *testing.T) {
	assert.NoError(t, ValidateThreadID(""))
	assert.NoError(t, ValidateThreadID("thread_abc123"))
	assert.NoError(t, ValidateThreadID(strings.Repeat("t", MaxThreadIDLength)))
	assert.ErrorIs(t, ValidateThreadID(strings.Repeat("t", MaxThreadIDLength+1)), ErrInvalidThreadID)
}

func TestValidateExchangeID(t *testing.T) {
	assert.NoError(t, ValidateExchangeID("0190a6f0-0000-7000-8000-000000000001"))
	assert.ErrorIs(t, ValidateExchangeID("chat.>"), ErrInvalidExchangeID)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/infrastructure/service/ratelimit"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func (s *stubLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	h := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "abc-123", seen)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, rr.Header().Get(CorrelationIDHeader), 36)
	assert.Equal(t, rr.Header().Get(CorrelationIDHeader), seen)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(okHandler(), []string{"https://club.example"}, false)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://club.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://club.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	h := CORSMiddleware(okHandler(), []string{"*"}, false)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://anything.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		decision       ratelimit.Decision
		err            error
		expectedStatus int
		expectedCalls  int
	}{
		{"reads bypass", "GET", ratelimit.Decision{Allowed: false}, nil, http.StatusOK, 0},
		{"allowed write", "POST", ratelimit.Decision{Allowed: true}, nil, http.StatusOK, 1},
		{"denied write", "DELETE", ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil, http.StatusTooManyRequests, 1},
		{"redis down fails open", "PUT", ratelimit.Decision{}, errors.New("dial tcp"), http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &stubLimiter{decision: tt.decision, err: tt.err}
			h := NewRateLimitMiddleware(limiter, logger.NewNop()).RateLimit(okHandler())

			req := httptest.NewRequest(tt.method, "/api/v1/reservations", nil)
			req.RemoteAddr = "10.0.0.1:5555"
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Len(t, limiter.keys, tt.expectedCalls)
			if tt.expectedCalls > 0 {
				assert.Equal(t, "reservations:write:ip:10.0.0.1", limiter.keys[0])
			}
			if tt.expectedStatus == http.StatusTooManyRequests {
				assert.Equal(t, "2", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/go-todo-tracker/shared/models"
)

func TestClientIP_XForwardedForFromTrustedProxy(t *testing.T) {
	h := &Handler{TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.RemoteAddr = "10.0.0.1:1234"

	if got := h.clientIP(req); got != "1.2.3.4" {
		t.Fatalf("clientIP = %q, want %q", got, "1.2.3.4")
	}
}

func TestClientIP_XForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	h := &Handler{TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.RemoteAddr = "203.0.113.7:1234"

	if got := h.clientIP(req); got != "203.0.113.7" {
		t.Fatalf("clientIP = %q, want %q", got, "203.0.113.7")
	}
}

func TestClientIP_RemoteAddr(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	if got := h.clientIP(req); got != "127.0.0.1" {
		t.Fatalf("clientIP = %q, want %q", got, "127.0.0.1")
	}
}

func TestRateLimitMiddleware_RotatingForwardedHeaderStillLimited(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := &Handler{RateLimiter: rl}
	next := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "9.9.9.9:1000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.1.1.%d", i))
		rec := httptest.NewRecorder()
		h.RateLimitMiddleware(next)(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status=%d, want %d", i, rec.Code, want)
		}
	}
}

func TestRateLimiter_AllowBlocksAndResets(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	defer rl.Stop()

	ip := "1.2.3.4"
	if !rl.Allow(ip) || !rl.Allow(ip) {
		t.Fatalf("first two attempts should be allowed")
	}
	if rl.Allow(ip) {
		t.Fatalf("third attempt should be blocked")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatalf("other clients keep their own budget")
	}

	time.Sleep(120 * time.Millisecond) // wait for cleanup to run
	if !rl.Allow(ip) {
		t.Fatalf("after window cleanup attempt should be allowed again")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := &Handler{RateLimiter: rl}
	next := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "9.9.9.9:1000"
		rec := httptest.NewRecorder()
		h.RateLimitMiddleware(next)(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status=%d, want %d", i, rec.Code, want)
		}
	}
}

func TestSendDomainError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		body string
	}{
		{models.ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND"},
		{models.ErrTagNotFound, http.StatusNotFound, "TAG_NOT_FOUND"},
		{models.NewValidationError("title", "title cannot be empty"), http.StatusUnprocessableEntity, `"field":"title"`},
		{models.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		rec := httptest.NewRecorder()
		sendDomainError(rec, req, tt.err)
		if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.body) {
			t.Fatalf("%v: status=%d body=%s", tt.err, rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Fatalf("internal details leaked: %s", rec.Body.String())
		}
	}
}

func TestLoggingMiddleware_PassesStatusThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	LoggingMiddleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d, want 418", rec.Code)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chepyr/go-todo-tracker/internal/auth"
	"github.com/chepyr/go-todo-tracker/shared"
	"github.com/chepyr/go-todo-tracker/shared/models"
	"github.com/chepyr/go-todo-tracker/tasks-service/db"
)

const defaultTimeout = 5 * time.Second

type Handler struct {
	TaskRepo    db.TaskRepositoryInterface
	TagRepo     db.TagRepositoryInterface
	Auth        auth.Authenticator
	RateLimiter *RateLimiter
	Timeout     time.Duration

	// TrustedProxies lists peers allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/todos", h.protect(h.HandleTasks))
	mux.HandleFunc("/api/todos/", h.protect(h.HandleTaskByID))
	mux.HandleFunc("/api/tags", h.protect(h.HandleTags))
	mux.HandleFunc("/api/tags/", h.protect(h.HandleTagByID))
	return LoggingMiddleware(mux)
}

func (h *Handler) protect(next http.HandlerFunc) http.HandlerFunc {
	return h.RateLimitMiddleware(h.AuthMiddleware(next))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	shared.SendJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "todo-backend"})
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

// sendDomainError maps store errors to responses. Unknown errors are logged
// and hidden from the client.
func sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		shared.SendErrorCode(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", ve.Field, ve.Message)
	case errors.Is(err, models.ErrTaskNotFound):
		shared.SendErrorCode(w, http.StatusNotFound, "TASK_NOT_FOUND", "", "Task not found")
	case errors.Is(err, models.ErrTagNotFound):
		shared.SendErrorCode(w, http.StatusNotFound, "TAG_NOT_FOUND", "", "Tag not found")
	case errors.Is(err, models.ErrUnauthorized):
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		userID, _ := UserIDFromContext(r.Context())
		log.Error("internal error", "method", r.Method, "path", r.URL.Path, "user", userID, "err", err)
		shared.SendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON enforces the content type and body size and decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.SendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows limit requests per client in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

// Stop ends the background reset loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mutex.Lock()
			rl.attempts = make(map[string]int)
			rl.mutex.Unlock()
		}
	}
}

func (h *Handler) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.RateLimiter != nil && !h.RateLimiter.Allow(h.clientIP(r)) {
			shared.SendError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientIP is the connection address, or the first X-Forwarded-For hop when
// the connection comes from a trusted proxy.
func (h *Handler) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" || !h.fromTrustedProxy(host) {
		return host
	}
	first, _, _ := strings.Cut(fwd, ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	return host
}

func (h *Handler) fromTrustedProxy(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range h.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/chepyr/go-todo-tracker/internal/auth"
	"github.com/chepyr/go-todo-tracker/shared"
)

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}

/*
Verify the bearer token with the configured authenticator
and put the user id from its subject into the request context
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		token, ok := auth.BearerToken(authHeader)
		if !ok {
			shared.SendError(w, "Authorization header must be a Bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := h.Auth.Authenticate(r.Context(), token)
		if err != nil {
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/chepyr/go-todo-tracker/shared"
	"github.com/google/uuid"
)

// GET /api/tags - every tag of the user with its task count
func (h *Handler) HandleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	stats, err := h.TagRepo.Stats(ctx, userID)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, map[string]any{"tags": stats})
}

/*
routes:
- GET /api/tags/{id}
- DELETE /api/tags/orphans - remove tags no task uses
*/
func (h *Handler) HandleTagByID(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/tags/" {
		h.HandleTags(w, r)
		return
	}
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/tags/")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if rest == "orphans" {
		if r.Method != http.MethodDelete {
			shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		deleted, err := h.TagRepo.CleanupOrphans(ctx, userID)
		if err != nil {
			sendDomainError(w, r, err)
			return
		}
		shared.SendJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
		return
	}

	if r.Method != http.MethodGet {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := uuid.Parse(rest); err != nil {
		shared.SendError(w, "tag_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	tag, err := h.TagRepo.GetByID(ctx, rest, userID)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, tag)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chepyr/go-todo-tracker/shared"
	"github.com/chepyr/go-todo-tracker/shared/models"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /api/todos - list tasks with filters, search, sorting and paging
- POST /api/todos - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query, err := parseListQuery(r)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	result, err := h.TaskRepo.List(ctx, userID, query)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, result)
}

// parseListQuery reads the listing parameters. tags may repeat and each value
// may hold a comma separated list.
func parseListQuery(r *http.Request) (models.ListQuery, error) {
	values := r.URL.Query()
	q := models.ListQuery{
		Search:    values.Get("search"),
		Status:    models.StatusFilter(values.Get("status")),
		Priority:  models.Priority(values.Get("priority")),
		SortField: models.SortField(values.Get("sort")),
		SortOrder: models.SortOrder(values.Get("order")),
	}
	for _, v := range values["tags"] {
		q.Tags = append(q.Tags, strings.Split(v, ",")...)
	}

	if raw := values.Get("no_tags"); raw != "" {
		noTags, err := strconv.ParseBool(raw)
		if err != nil {
			return q, models.NewValidationError("no_tags", "no_tags must be true or false")
		}
		q.NoTags = noTags
	}
	var err error
	if q.Limit, err = intParam(values.Get("limit"), "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(values.Get("offset"), "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(field, field+" must be an integer")
	}
	return n, nil
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input models.NewTask
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.TaskRepo.Create(ctx, userID, input)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/todos/"+task.ID)
	shared.SendJSON(w, http.StatusCreated, task)
}

/*
routes:
- GET/POST /api/todos/ (same as the collection)
- GET /api/todos/{id}
- PUT/PATCH /api/todos/{id}
- DELETE /api/todos/{id}
- POST /api/todos/{id}/toggle
- GET /api/todos/{id}/tags
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/todos/")
	if rest == "" {
		h.HandleTasks(w, r)
		return
	}
	taskIDstr, action, _ := strings.Cut(rest, "/")
	if taskIDstr == "" {
		shared.SendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(taskIDstr)
	if err != nil {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case action == "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.updateTaskByID(w, r, taskID)
	case action == "" && r.Method == http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	case action == "toggle" && r.Method == http.MethodPost:
		h.toggleTask(w, r, taskID)
	case action == "tags" && r.Method == http.MethodGet:
		h.getTaskTags(w, r, taskID)
	case action == "" || action == "toggle" || action == "tags":
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		shared.SendError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID.String(), userID)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// absent fields stay nil and are left unchanged; "tags": [] clears tags
	var patch models.TaskPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.TaskRepo.Update(ctx, taskID.String(), userID, patch)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.TaskRepo.Delete(ctx, taskID.String(), userID); err != nil {
		sendDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.TaskRepo.ToggleCompletion(ctx, taskID.String(), userID)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

func (h *Handler) getTaskTags(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	taskTags, err := h.TagRepo.TagsForTask(ctx, taskID.String(), userID)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, taskTags)
}

package maintenance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

// Handler exposes maintenance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers maintenance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermMaintenance))
		r.Get("/maintenance", h.list)
		r.Get("/maintenance/overdue", h.overdue)
		r.Post("/maintenance", h.create)
		r.Put("/maintenance/{id}", h.update)
		r.Post("/maintenance/{id}/complete", h.complete)
		r.Delete("/maintenance/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.Overdue(r.Context(), time.Now())
	if err != nil {
		h.fail(w, "overdue tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	t, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create task", err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Maintenance task created", t)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	t, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update task", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Maintenance task updated", t)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.fail(w, "complete task", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Maintenance task completed", t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete task", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Maintenance task deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("Invalid task id"))
		return 0, false
	}
	return id, true
}

func decodeTask(w http.ResponseWriter, r *http.Request) (TaskInput, bool) {
	var in TaskInput
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid task payload"))
			return TaskInput{}, false
		}
		return in, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid form submission"))
		return TaskInput{}, false
	}
	return TaskInput{
		Equipment:   r.PostFormValue("equipment"),
		Description: r.PostFormValue("description"),
		Priority:    r.PostFormValue("priority"),
		AssignedTo:  r.PostFormValue("assigned_to"),
		DueDate:     r.PostFormValue("due_date"),
		Status:      r.PostFormValue("status"),
	}, true
}

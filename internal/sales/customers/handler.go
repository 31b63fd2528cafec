package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCustomersView))
		r.Get("/customers", h.List)
		r.Get("/customers/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCustomersEdit))
		r.Post("/customers", h.Create)
		r.Put("/customers/{id}", h.Update)
		r.Delete("/customers/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	customers, total, err := h.service.List(r.Context(), ListCustomersRequest{
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid customer payload"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid form submission"))
			return
		}
		req = CreateCustomerRequest{
			Name:  r.PostFormValue("name"),
			Email: r.PostFormValue("email"),
			Phone: r.PostFormValue("phone"),
		}
	}

	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Customer added", c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid customer payload"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid form submission"))
			return
		}
		req.Name = formValue(r, "name")
		req.Email = formValue(r, "email")
		req.Phone = formValue(r, "phone")
	}

	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Customer updated", c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Customer deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op+" failed", "error", err)
	}
	httpx.RespondError(w, err)
}

func customerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("Invalid customer id"))
		return 0, false
	}
	return id, true
}

// formValue returns nil when the field was not posted at all.
func formValue(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView))
		r.Get("/inventory", h.list)
		r.Get("/inventory/report", h.report)
		r.Get("/inventory/low-stock", h.lowStock)
		r.Get("/inventory/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryEdit))
		r.Post("/inventory", h.create)
		r.Put("/inventory/{id}", h.update)
		r.Delete("/inventory/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, "inventory report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold, _ := strconv.Atoi(r.URL.Query().Get("threshold"))
	products, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Product added", p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Product updated", p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := productID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "delete product", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Product and its sales deleted", summary)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("Invalid product id"))
		return 0, false
	}
	return id, true
}

// decodeProduct accepts either a JSON body or a form post.
func decodeProduct(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var in ProductInput
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid product payload"))
			return ProductInput{}, false
		}
		return in, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid form submission"))
		return ProductInput{}, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("Price must be a number"))
		return ProductInput{}, false
	}
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		httpx.RespondError(w, shared.Validation("Quantity must be a whole number"))
		return ProductInput{}, false
	}
	in.Name = r.PostFormValue("name")
	in.UnitMeasure = r.PostFormValue("unit_measure")
	in.Price = price
	in.Quantity = qty
	return in, true
}

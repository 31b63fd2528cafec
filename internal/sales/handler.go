package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

// IdempotencyHeader carries the client key for batch submissions.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/sales", h.listSales)
		r.Get("/sales/feed", h.feed)
		r.Get("/sales/today", h.today)
		r.Get("/sales/report/daily", h.dailyReport)
		r.Get("/sales/overview", h.overview)
		r.Get("/sales/products", h.searchProducts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesCreate))
		r.Post("/sales", h.createSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesReverse))
		r.Delete("/sales/{id}", h.reverseSale)
	})
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if httpx.IsJSON(r) {
		h.createBatch(w, r, actor)
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid form submission"))
		return
	}
	productID, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("product_id")), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("A product must be selected"))
		return
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		httpx.RespondError(w, shared.Validation("Quantity must be a positive whole number"))
		return
	}

	sale, err := h.service.RecordSale(r.Context(), actor, SingleInput{
		Customer:  r.PostFormValue("customer"),
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		h.logFailure("record sale", actor, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Sale recorded", sale)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request, actor shared.Actor) {
	var input BatchInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid sale payload"))
		return
	}
	outcomes, err := h.service.RecordBatch(r.Context(), actor, input, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.logFailure("record batch", actor, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Sale recorded", outcomes)
}

func (h *Handler) reverseSale(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("Invalid sale id"))
		return
	}
	sale, err := h.service.ReverseSale(r.Context(), actor, id)
	if err != nil {
		h.logFailure("reverse sale", actor, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Sale deleted", sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, h.service.loc)
		if err != nil {
			httpx.RespondError(w, shared.Validation("from must be YYYY-MM-DD"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, h.service.loc)
		if err != nil {
			httpx.RespondError(w, shared.Validation("to must be YYYY-MM-DD"))
			return
		}
		filter.To = t.AddDate(0, 0, 1)
	}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.UserID, _ = strconv.ParseInt(q.Get("user_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	sales, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.respondReadError(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sales, err := h.service.RecentFeed(r.Context(), limit)
	if err != nil {
		h.respondReadError(w, "sales feed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TodayTotal(r.Context())
	if err != nil {
		h.respondReadError(w, "today total", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"total": total})
}

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DailyReport(r.Context())
	if err != nil {
		h.respondReadError(w, "daily report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.respondReadError(w, "sales overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.service.SearchProducts(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.respondReadError(w, "search products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) respondReadError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) logFailure(op string, actor shared.Actor, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op, slog.Int64("user_id", actor.ID), slog.Any("error", err))
		return
	}
	h.logger.Info(op+" rejected", slog.Int64("user_id", actor.ID), slog.String("kind", string(shared.KindOf(err))))
}

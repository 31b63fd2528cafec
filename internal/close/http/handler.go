package closehttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/close"
	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

type closeService interface {
	Close(ctx context.Context, actor shared.Actor) (close.Summary, error)
	ListRecords(ctx context.Context, limit int) ([]close.DailySalesRecord, error)
}

// Handler wires HTTP endpoints for the daily close.
type Handler struct {
	logger  *slog.Logger
	service closeService
	rbac    rbac.Middleware
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, service closeService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers close routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesClose))
		r.Post("/close/daily", h.closeDay)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/close/records", h.listRecords)
	})
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.Close(r.Context(), actor)
	if err != nil {
		h.logger.Error("daily close", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("daily close",
		slog.Int64("user_id", actor.ID),
		slog.String("date", out.Date),
		slog.Float64("total", out.Total),
		slog.Int("sales_purged", out.SalesPurged),
	)
	httpx.RespondResult(w, http.StatusOK, out.Message, out)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.ListRecords(r.Context(), limit)
	if err != nil {
		h.logger.Error("list close records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

package cashregister

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

// Handler exposes the cash register endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers cash register routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCashView))
		r.Get("/cash-register", h.list)
		r.Get("/cash-register/report", h.report)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCashCreate))
		r.Post("/cash-register", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCashEdit))
		r.Put("/cash-register/{id}", h.update)
		r.Delete("/cash-register/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list cash entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, "cash report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	in, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	e, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create cash entry", err)
		return
	}
	httpx.RespondResult(w, http.StatusCreated, "Cash register entry saved", e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	in, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	e, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update cash entry", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Cash register entry updated", e)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete cash entry", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Cash register entry deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("Invalid entry id"))
		return 0, false
	}
	return id, true
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (EntryInput, bool) {
	var in EntryInput
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid cash register payload"))
			return EntryInput{}, false
		}
		return in, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid form submission"))
		return EntryInput{}, false
	}
	var err error
	if in.Transfer, err = parseAmount(r.PostFormValue("transfer_amount")); err != nil {
		httpx.RespondError(w, shared.Validation("Transfer amount must be a number"))
		return EntryInput{}, false
	}
	if in.Cash, err = parseAmount(r.PostFormValue("cash_amount")); err != nil {
		httpx.RespondError(w, shared.Validation("Cash amount must be a number"))
		return EntryInput{}, false
	}
	in.Notes = r.PostFormValue("notes")
	return in, true
}

// parseAmount treats a blank field as zero.
func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

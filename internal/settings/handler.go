package settings

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

// darkModeKey stores a per-session dark mode override.
const darkModeKey = "dark_mode"

// Handler exposes settings endpoints. Every route expects an authenticated
// actor in context.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.show)
	r.Post("/settings/dark-mode", h.toggleDarkMode)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSettingsEdit))
		r.Put("/settings", h.update)
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context())
	if err != nil {
		h.fail(w, "load settings", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if v := sess.Get(darkModeKey); v != "" {
			s.DarkMode, _ = strconv.ParseBool(v)
		}
	}
	info, err := h.service.Info(r.Context())
	if err != nil {
		h.fail(w, "load system info", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"settings": s, "system": info})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid settings payload"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid form submission"))
			return
		}
		in = UpdateInput{
			CompanyName: r.PostFormValue("company_name"),
			Currency:    r.PostFormValue("currency"),
			DateFormat:  r.PostFormValue("date_format"),
			Language:    r.PostFormValue("language"),
		}
	}
	s, err := h.service.Update(r.Context(), in)
	if err != nil {
		h.fail(w, "update settings", err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Settings updated", s)
}

// toggleDarkMode stores the preference on the session; admins also change
// the company-wide default.
func (h *Handler) toggleDarkMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DarkMode bool `json:"dark_mode"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.Validation("Invalid dark mode payload"))
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(darkModeKey, strconv.FormatBool(body.DarkMode))
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if actor.IsAdmin() {
		if err := h.service.ToggleDarkMode(r.Context(), body.DarkMode); err != nil {
			h.fail(w, "toggle dark mode", err)
			return
		}
	}
	httpx.RespondResult(w, http.StatusOK, "Dark mode updated", map[string]bool{"dark_mode": body.DarkMode})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindStorage {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

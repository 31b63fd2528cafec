package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/platform/httpx"
	"github.com/tradyx/backoffice/internal/rbac"
	"github.com/tradyx/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	rbac           rbac.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		rbac:           rbac,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.Get("/me", h.handleMe)
		r.Post("/password", h.handlePassword)
	})
}

type loginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}

	var form loginForm
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid login payload"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid form submission"))
			return
		}
		form = loginForm{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, shared.Validation("Username and password are required"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Info("login rejected", slog.String("username", form.Username))
			httpx.JSON(w, http.StatusUnauthorized, shared.Result{Kind: shared.KindValidation, Message: "Invalid username or password"})
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.RespondError(w, shared.Storage("Could not sign in", err))
		return
	}

	sess.SetUser(user.ID)
	sess.Delete(shared.CSRFSessionKey)
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	h.logger.Info("login", slog.Int64("user_id", user.ID), slog.String("role", user.Role))
	httpx.RespondResult(w, http.StatusOK, "Welcome back, "+user.Username, map[string]any{
		"user":       user,
		"csrf_token": token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.RespondResult(w, http.StatusOK, "Signed out", nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":          actor.ID,
		"username":    actor.Username,
		"role":        actor.Role,
		"permissions": rbac.PermissionsFor(actor.Role),
	})
}

func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var in PasswordChange
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid password payload"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.RespondError(w, shared.Validation("Invalid form submission"))
			return
		}
		in = PasswordChange{
			Current: r.PostFormValue("current_password"),
			New:     r.PostFormValue("new_password"),
			Confirm: r.PostFormValue("confirm_password"),
		}
	}
	if err := h.service.ChangePassword(r.Context(), actor, in); err != nil {
		if shared.KindOf(err) == shared.KindStorage {
			h.logger.Error("change password", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondResult(w, http.StatusOK, "Password updated", nil)
}

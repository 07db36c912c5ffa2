package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
	"github.com/freshcart/console/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *TokenIssuer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenIssuer, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	ReturnTo string `json:"return_to" validate:"omitempty,max=2048"`
}

type loginResponse struct {
	User         access.Actor         `json:"user"`
	LandingPath  string               `json:"landing_path"`
	Redirect     string               `json:"redirect"`
	AccessToken  string               `json:"access_token,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	CSRFToken    string               `json:"csrf_token,omitempty"`
	Capabilities access.CapabilityMap `json:"capabilities"`
}

type meResponse struct {
	User         access.Actor         `json:"user"`
	LandingPath  string               `json:"landing_path"`
	Capabilities access.CapabilityMap `json:"capabilities"`
	Controls     access.UserControls  `json:"controls"`
}

// showLogin hands out the CSRF token a login form must echo back.
func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Field()+" is invalid")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sess := shared.SessionFromContext(r.Context())
	input := LoginInput{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		ExpiresAt: time.Now().Add(h.sessionManager.TTL()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if sess != nil {
		input.SessionID = sess.ID
	}
	result, err := h.service.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := loginResponse{
		User:         result.Actor,
		LandingPath:  result.LandingPath(),
		Redirect:     safeReturnTo(req.ReturnTo, result.LandingPath()),
		Capabilities: result.Capabilities,
	}
	if sess != nil {
		sess.Login(result.Actor, result.Permissions)
		token, err := h.csrfManager.Rotate(r.Context(), sess)
		if err != nil {
			h.logger.Error("rotate csrf token", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		resp.CSRFToken = token
	} else {
		h.logger.Error("session missing during login")
	}
	if h.tokens != nil && sess != nil {
		token, expiresAt, err := h.tokens.Issue(result.Actor, sess.ID)
		if err != nil {
			h.logger.Error("issue access token", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		resp.AccessToken = token
		resp.ExpiresAt = &expiresAt
	}
	h.logger.Info("login", slog.String("user_id", result.Actor.ID), slog.String("role", result.Actor.Role.String()))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := shared.BearerSessionFromContext(r.Context()); ok {
		if err := h.service.RemoveSession(r.Context(), id); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		if err := h.sessionManager.Revoke(r.Context(), id); err != nil {
			h.logger.Error("revoke bearer session", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"redirect": access.LoginPath})
		return
	}
	http.Redirect(w, r, access.LoginPath, http.StatusSeeOther)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.ProblemRedirect(w, http.StatusUnauthorized, "Unauthorized", access.LoginPath)
		return
	}
	caps := access.CapabilitiesFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, meResponse{
		User:         *actor,
		LandingPath:  actor.EffectiveRole().LandingPath(),
		Capabilities: caps,
		Controls:     access.UserControlsFor(caps),
	})
}

// safeReturnTo accepts only same-origin absolute paths.
func safeReturnTo(returnTo, fallback string) string {
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.HasPrefix(returnTo, "/\\") {
		return fallback
	}
	if returnTo == access.LoginPath || strings.HasPrefix(returnTo, access.LoginPath+"?") {
		return fallback
	}
	return returnTo
}

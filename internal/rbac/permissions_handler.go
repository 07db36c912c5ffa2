package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
)

// PermissionsHandler exposes the resolved capabilities of the caller.
type PermissionsHandler struct {
	logger *slog.Logger
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, rbac Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/capabilities", h.capabilities)
	r.Get("/menu", h.menu)
	r.Get("/check", h.check)
	r.Get("/table/{module}", h.table)
}

type capabilitiesResponse struct {
	Authenticated bool                 `json:"authenticated"`
	Role          access.Role          `json:"role"`
	LandingPath   string               `json:"landing_path"`
	Capabilities  access.CapabilityMap `json:"capabilities"`
}

func (h *PermissionsHandler) capabilities(w http.ResponseWriter, r *http.Request) {
	p := h.rbac.principal(r)
	httpx.JSON(w, http.StatusOK, capabilitiesResponse{
		Authenticated: p.Authenticated,
		Role:          p.Role(),
		LandingPath:   p.Role().LandingPath(),
		Capabilities:  p.Capabilities,
	})
}

func (h *PermissionsHandler) menu(w http.ResponseWriter, r *http.Request) {
	p := h.rbac.principal(r)
	httpx.JSON(w, http.StatusOK, map[string]any{"items": h.rbac.Service.Menu(p)})
}

type checkResponse struct {
	Module  access.Module `json:"module"`
	Action  access.Action `json:"action"`
	Allowed bool          `json:"allowed"`
}

func (h *PermissionsHandler) check(w http.ResponseWriter, r *http.Request) {
	module, ok := access.ParseModule(r.URL.Query().Get("module"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown module")
		return
	}
	action := access.ActionRead
	if raw := r.URL.Query().Get("action"); raw != "" {
		parsed, err := access.ParseAction(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		action = parsed
	}
	p := h.rbac.principal(r)
	httpx.JSON(w, http.StatusOK, checkResponse{
		Module:  module,
		Action:  action,
		Allowed: access.CanAccess(p.Capabilities, module, action),
	})
}

type tableResponse struct {
	Module            access.Module       `json:"module"`
	Actions           access.TableActions `json:"actions"`
	ShowActionsColumn bool                `json:"show_actions_column"`
}

func (h *PermissionsHandler) table(w http.ResponseWriter, r *http.Request) {
	module, ok := access.ParseModule(chi.URLParam(r, "module"))
	if !ok {
		h.logger.Debug("table actions for unknown module", slog.String("module", chi.URLParam(r, "module")))
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown module")
		return
	}
	p := h.rbac.principal(r)
	actions := access.TableActionsFor(p.Capabilities.Get(module))
	httpx.JSON(w, http.StatusOK, tableResponse{
		Module:            module,
		Actions:           actions,
		ShowActionsColumn: actions.ShowActionsColumn(),
	})
}

package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
	"github.com/freshcart/console/internal/rbac"
	"github.com/freshcart/console/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModule(access.ModuleUsers, access.ActionRead))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModule(access.ModulePermission, access.ActionUpdate))
		r.Put("/{id}/permissions", h.updatePermissions)
	})
}

type listResponse struct {
	Users             []User              `json:"users"`
	Pagination        shared.Pagination   `json:"pagination"`
	Actions           access.TableActions `json:"actions"`
	ShowActionsColumn bool                `json:"show_actions_column"`
}

type detailResponse struct {
	User         User                   `json:"user"`
	Permissions  []access.RawPermission `json:"permissions,omitempty"`
	Capabilities *access.CapabilityMap  `json:"capabilities,omitempty"`
	Controls     access.UserControls    `json:"controls"`
}

type permissionsRequest struct {
	Permissions []access.RawPermission `json:"permissions"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := ListFilter{Search: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := access.Role(strings.ToLower(strings.TrimSpace(raw)))
		if !role.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown role "+strconv.Quote(raw))
			return
		}
		filter.Role = role
	}
	users, pagination, err := h.service.ListUsers(r.Context(), filter, page, perPage)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	actions := access.TableActionsFor(access.CapabilitiesFromContext(r.Context()).Get(access.ModuleUsers))
	httpx.JSON(w, http.StatusOK, listResponse{
		Users:             users,
		Pagination:        pagination,
		Actions:           actions,
		ShowActionsColumn: actions.ShowActionsColumn(),
	})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.detail(r, detail))
}

func (h *Handler) updatePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req permissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	in := PermissionsUpdate{UserID: id, Records: req.Permissions}
	if actor, found := access.ActorFromContext(r.Context()); found {
		in.Actor = actor
	}
	detail, err := h.service.UpdatePermissions(r.Context(), in)
	if err != nil {
		h.respondError(w, "update permissions failed", err)
		return
	}
	h.logger.Info("permissions replaced", slog.Int64("user_id", id), slog.Int("records", len(detail.Records)))
	httpx.JSON(w, http.StatusOK, h.detail(r, detail))
}

// detail hides records and capabilities from callers who may not see
// permissions.
func (h *Handler) detail(r *http.Request, d Detail) detailResponse {
	controls := access.UserControlsFor(access.CapabilitiesFromContext(r.Context()))
	resp := detailResponse{User: d.User, Controls: controls}
	if controls.SeePermissions || controls.EditPermissions {
		resp.Permissions = d.Records
		caps := d.Capabilities
		resp.Capabilities = &caps
	}
	return resp
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if !isClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, httpx.ErrValidation)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid user id")
		return 0, false
	}
	return id, true
}

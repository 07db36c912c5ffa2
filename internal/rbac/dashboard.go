package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
)

// CustomerPath is the customer landing screen.
const CustomerPath = "/customer"

// DashboardHandler serves the screen shells behind the navigation menu.
// Every entry is guarded by the rule derived from it, so the menu and the
// route table cannot drift apart.
type DashboardHandler struct {
	rbac Middleware
}

// NewDashboardHandler builds DashboardHandler instance.
func NewDashboardHandler(rbac Middleware) *DashboardHandler {
	return &DashboardHandler{rbac: rbac}
}

type screenResponse struct {
	Title             string               `json:"title"`
	URL               string               `json:"url"`
	Role              access.Role          `json:"role"`
	Module            string               `json:"module,omitempty"`
	Actions           *access.TableActions `json:"actions,omitempty"`
	ShowActionsColumn bool                 `json:"show_actions_column"`
	Menu              []access.MenuItem    `json:"menu"`
}

// MountRoutes registers one route per menu entry plus the customer and
// unauthorized screens.
func (h *DashboardHandler) MountRoutes(r chi.Router) {
	for _, item := range h.rbac.Service.Screens() {
		r.With(h.rbac.Require(item.Rule())).Get(item.URL, h.screen(item))
	}
	customer := access.MenuItem{Title: "My Account", URL: CustomerPath}
	r.With(h.rbac.Require(customer.Rule())).Get(CustomerPath, h.screen(customer))
	r.Get(access.UnauthorizedPath, h.unauthorized)
}

func (h *DashboardHandler) screen(item access.MenuItem) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := h.rbac.principal(r)
		resp := screenResponse{
			Title: item.Title,
			URL:   item.URL,
			Role:  p.Role(),
			Menu:  h.rbac.Service.Menu(p),
		}
		if item.HasModule {
			actions := access.TableActionsFor(p.Capabilities.Get(item.Module))
			resp.Module = item.Module.String()
			resp.Actions = &actions
			resp.ShowActionsColumn = actions.ShowActionsColumn()
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}

func (h *DashboardHandler) unauthorized(w http.ResponseWriter, r *http.Request) {
	p := h.rbac.principal(r)
	httpx.JSON(w, http.StatusForbidden, map[string]any{
		"title":        "Unauthorized",
		"detail":       "you do not have permission to view this page",
		"landing_path": p.Role().LandingPath(),
	})
}

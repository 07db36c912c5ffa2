package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/httpx"
	"github.com/freshcart/console/internal/shared"
)

// Middleware wires access control for HTTP handlers.
type Middleware struct {
	Service  *Service
	Tokens   TokenVerifier
	Sessions SessionLookup
	Metrics  DecisionRecorder
	Logger   *slog.Logger
}

// Authenticate resolves the request principal from a bearer token or the
// session identity and stores actor and capabilities in the context.
// Bearer tokens resolve through the session named by their sid claim and are
// rejected once that session is gone. Anonymous requests pass through with
// the customer baseline.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, payload, ctx, ok := m.identify(w, r)
		if !ok {
			return
		}
		p := m.Service.Resolve(actor, payload)
		ctx = access.ContextWithCapabilities(ctx, p.Capabilities)
		if actor != nil {
			ctx = access.ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) identify(w http.ResponseWriter, r *http.Request) (*access.Actor, []byte, context.Context, bool) {
	ctx := r.Context()
	if token, found := httpx.BearerToken(r); found {
		if m.Tokens == nil || m.Sessions == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer tokens are not accepted")
			return nil, nil, ctx, false
		}
		claims, err := m.Tokens.Verify(token)
		if err != nil {
			m.logger().Info("rejected bearer token", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.ProblemRedirect(w, http.StatusUnauthorized, "Unauthorized", access.LoginPath)
			return nil, nil, ctx, false
		}
		identity, ok, err := m.Sessions.Lookup(ctx, claims.SessionID)
		if err != nil {
			m.logger().Error("load bearer session", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, err)
			return nil, nil, ctx, false
		}
		if !ok || identity.Actor.ID != claims.UserID {
			m.logger().Info("bearer session ended",
				slog.String("path", r.URL.Path),
				slog.String("user_id", claims.UserID),
			)
			httpx.ProblemRedirect(w, http.StatusUnauthorized, "Unauthorized", access.LoginPath)
			return nil, nil, ctx, false
		}
		actor := identity.Actor
		return &actor, identity.Permissions, shared.ContextWithBearerSession(ctx, claims.SessionID), true
	}
	identity, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return nil, nil, ctx, true
	}
	actor := identity.Actor
	return &actor, identity.Permissions, ctx, true
}

// Require enforces rule. Browsers are redirected to the decision path; JSON
// clients receive 401 or 403 naming it.
func (m Middleware) Require(rule access.RouteRule) func(http.Handler) http.Handler {
	module := "-"
	if rule.HasModule {
		module = rule.Module.String()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := m.principal(r)
			decision := m.Service.Check(p, rule, r.URL.RequestURI())
			if m.Metrics != nil {
				m.Metrics.RecordAccessDecision(module, decision.Outcome.String())
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			m.logger().Info("access denied",
				slog.String("path", r.URL.Path),
				slog.String("module", module),
				slog.String("role", p.Role().String()),
				slog.String("outcome", decision.Outcome.String()),
			)
			m.deny(w, r, decision)
		})
	}
}

// RequireModule enforces action on module. An empty action means read.
func (m Middleware) RequireModule(module access.Module, action access.Action) func(http.Handler) http.Handler {
	return m.Require(access.RequireModule(module, action))
}

// RequireRoles restricts the route to roles.
func (m Middleware) RequireRoles(roles ...access.Role) func(http.Handler) http.Handler {
	return m.Require(access.RequireRoles(roles...))
}

func (m Middleware) principal(r *http.Request) Principal {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		actor = nil
	}
	return Principal{
		Actor:         actor,
		Capabilities:  access.CapabilitiesFromContext(r.Context()),
		Authenticated: ok,
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, decision access.Decision) {
	status := http.StatusForbidden
	if decision.Outcome == access.OutcomeLogin {
		status = http.StatusUnauthorized
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, decision)
		return
	}
	target := decision.Redirect
	if decision.ReturnTo != "" {
		target += "?return_to=" + url.QueryEscape(decision.ReturnTo)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

package access

// Redirect targets used by the route guard.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Outcome is the result kind of a route check.
type Outcome int

// Route check outcomes.
const (
	OutcomeAllow Outcome = iota
	OutcomeLogin
	OutcomeLanding
	OutcomeUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeLogin:
		return "login"
	case OutcomeLanding:
		return "landing"
	case OutcomeUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// RouteRule describes what a route requires. The zero value only requires
// an authenticated actor.
type RouteRule struct {
	Module       Module
	HasModule    bool
	Action       Action
	AllowedRoles []Role
}

// RequireModule builds a rule on module. An empty action means read.
func RequireModule(module Module, action Action) RouteRule {
	return RouteRule{Module: module, HasModule: true, Action: action}
}

// RequireRoles builds a rule restricted to roles.
func RequireRoles(roles ...Role) RouteRule {
	return RouteRule{AllowedRoles: roles}
}

// WithRoles returns a copy of the rule restricted to roles.
func (r RouteRule) WithRoles(roles ...Role) RouteRule {
	r.AllowedRoles = roles
	return r
}

func (r RouteRule) action() Action {
	if r.Action == "" {
		return ActionRead
	}
	return r.Action
}

// Decision is the route guard verdict. Redirect is empty when allowed;
// ReturnTo is only set when sending the actor to log in.
type Decision struct {
	Outcome  Outcome `json:"-"`
	Redirect string  `json:"redirect,omitempty"`
	ReturnTo string  `json:"returnTo,omitempty"`
}

// Allowed reports whether the route may render.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Gate evaluates route rules.
type Gate struct{}

// Check decides whether actor may reach a route guarded by rule. requested is
// the path including its query string. Authentication is checked first, then
// the role allow-list, then the module capability; both of the latter must
// pass.
func (Gate) Check(actor *Actor, caps CapabilityMap, rule RouteRule, requested string) Decision {
	if actor == nil {
		return Decision{Outcome: OutcomeLogin, Redirect: LoginPath, ReturnTo: requested}
	}
	role := actor.EffectiveRole()
	if len(rule.AllowedRoles) > 0 && !roleIn(role, rule.AllowedRoles) {
		return Decision{Outcome: OutcomeLanding, Redirect: role.LandingPath()}
	}
	if rule.HasModule && !caps.Can(rule.Module, rule.action()) {
		return Decision{Outcome: OutcomeUnauthorized, Redirect: UnauthorizedPath}
	}
	return Decision{Outcome: OutcomeAllow}
}

// IsRouteAllowed resolves the actor capabilities from raw and checks rule
// against the default policy.
func IsRouteAllowed(actor *Actor, raw any, rule RouteRule, requested string) Decision {
	return Gate{}.Check(actor, ResolveActor(actor, raw), rule, requested)
}

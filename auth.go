package fluxmcp

import "context"

// AuthContext carries the caller identity for a single operation. It is
// transient request state: cluster handles consult it, nothing persists it.
type AuthContext struct {
	// UserID identifies the caller.
	UserID string

	// Token is an opaque credential for external authorizers.
	Token string

	// Provider names the system that asserted this identity.
	Provider string
}

// AuthGate decides whether a caller may act on a cluster. Every mutating
// cluster operation consults the gate before touching the scheduler.
type AuthGate interface {
	Authorize(ctx context.Context, auth AuthContext, clusterName string) bool
}

// AllowAll is an AuthGate that authorizes every caller. It is the default
// for development and single-user deployments.
type AllowAll struct{}

// Authorize always returns true.
func (AllowAll) Authorize(context.Context, AuthContext, string) bool { return true }

// ACLGate is an AuthGate backed by a static user-to-clusters map. Unknown
// users are denied; the cluster name "*" grants a user every cluster.
type ACLGate struct {
	acl map[string]map[string]bool
}

// NewACLGate builds a gate from user -> permitted cluster names.
func NewACLGate(acl map[string][]string) *ACLGate {
	g := &ACLGate{acl: make(map[string]map[string]bool, len(acl))}
	for user, clusters := range acl {
		set := make(map[string]bool, len(clusters))
		for _, c := range clusters {
			set[c] = true
		}
		g.acl[user] = set
	}
	return g
}

// Authorize reports whether the user may act on the named cluster.
func (g *ACLGate) Authorize(_ context.Context, auth AuthContext, clusterName string) bool {
	set, ok := g.acl[auth.UserID]
	if !ok {
		return false
	}
	return set["*"] || set[clusterName]
}

var (
	_ AuthGate = AllowAll{}
	_ AuthGate = (*ACLGate)(nil)
)

package swp

import (
	"context"
	"strings"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the authenticated user/service ID.
	Subject string `json:"subject"`

	// Scopes defines what operations are permitted.
	// Examples: "job:read", "ingest", "*"
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope returns true if the identity has the given scope.
// A wildcard "*" scope grants all permissions.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}

// AuthContext converts the wire identity into the caller context the
// cluster handles consult.
func (id *Identity) AuthContext() fluxmcp.AuthContext {
	return fluxmcp.AuthContext{
		UserID:   id.Subject,
		Provider: "swp",
	}
}

// Authenticator validates credentials and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ── API Key authenticator ───────────────────────────

// APIKeyEntry maps a token to an identity.
type APIKeyEntry struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator validates API keys against a static list.
type APIKeyAuthenticator struct {
	keys map[string]*Identity
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(entries ...APIKeyEntry) *APIKeyAuthenticator {
	keys := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		id := e.Identity
		keys[e.Token] = &id
	}
	return &APIKeyAuthenticator{keys: keys}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	id, ok := a.keys[token]
	if !ok {
		return nil, fluxmcp.ErrUnauthorized
	}
	return id, nil
}

// ── No-op authenticator ─────────────────────────────

// NoopAuthenticator accepts all tokens with a wildcard identity.
// Use for development only.
type NoopAuthenticator struct{}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{
		Subject: "anonymous",
		Scopes:  []string{"*"},
	}, nil
}

// ── Scope constants ─────────────────────────────────

const (
	// ScopeIngest marks a trusted forwarding peer. Only identities
	// holding it may push events into the store.
	ScopeIngest = "ingest"

	ScopeJobRead     = "job:read"
	ScopeJobWrite    = "job:write"
	ScopeClusterRead = "cluster:read"
	ScopeAll         = "*"
)

// RequiredScope returns the minimum scope required for an SWP method.
func RequiredScope(method string) string {
	switch {
	case method == MethodAuth:
		return "" // No scope needed for auth.
	case method == MethodEventIngest:
		return ScopeIngest
	case strings.HasPrefix(method, "job."):
		if method == MethodJobGet || method == MethodJobHistory || method == MethodJobSearch {
			return ScopeJobRead
		}
		return ScopeJobWrite
	case method == MethodClusterList:
		return ScopeClusterRead
	default:
		return ScopeAll
	}
}

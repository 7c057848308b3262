package pipeline

import (
	"context"
	"fmt"

	"github.com/claude/fitbridge/internal/models"
)

// AuthContext answers the session questions the pipeline asks before it
// issues any read.
type AuthContext interface {
	IsAuthenticated() bool
	HasScopes(kinds ...models.MetricKind) bool
}

// StaticAuth is an AuthContext with fixed answers.
type StaticAuth struct {
	Authenticated bool
	Scopes        []models.MetricKind
}

// FullAccess is an authenticated context granted every metric kind.
func FullAccess() StaticAuth {
	return StaticAuth{Authenticated: true, Scopes: models.AllMetricKinds}
}

func (a StaticAuth) IsAuthenticated() bool {
	return a.Authenticated
}

func (a StaticAuth) HasScopes(kinds ...models.MetricKind) bool {
	granted := make(map[models.MetricKind]bool, len(a.Scopes))
	for _, k := range a.Scopes {
		granted[k] = true
	}
	for _, k := range kinds {
		if !granted[k] {
			return false
		}
	}
	return true
}

func authorize(auth AuthContext, kinds ...models.MetricKind) error {
	if auth == nil || !auth.IsAuthenticated() {
		return models.ErrNotAuthenticated
	}
	if !auth.HasScopes(kinds...) {
		return fmt.Errorf("%w: scopes %v required", models.ErrPermissionDenied, kinds)
	}
	return nil
}

type authKey struct{}

// WithAuth returns a context carrying auth for transports that
// authenticate before dispatching.
func WithAuth(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, auth)
}

// AuthFromContext returns the AuthContext stored by WithAuth, or nil.
func AuthFromContext(ctx context.Context) AuthContext {
	auth, _ := ctx.Value(authKey{}).(AuthContext)
	return auth
}

// Package noop provides an authenticator that accepts every request under
// an anonymous identity. It is the default for local development.
package noop

import (
	"context"
	"net/http"

	"github.com/denker-ai/denker/pkg/auth"
)

// Authenticator always votes Yes.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     "anonymous",
			ServiceTier: "default",
		},
	}
}

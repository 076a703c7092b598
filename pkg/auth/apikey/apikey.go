// Package apikey provides an authenticator for static bearer keys. Keys
// are SHA-256 hashed at load time and compared in constant time; plaintext
// keys are never kept in memory.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/denker-ai/denker/pkg/auth"
)

// KeySpec is one configured API key with the identity it grants.
type KeySpec struct {
	Key         string
	Subject     string
	ServiceTier string
	Scopes      []string
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against the configured key set.
type Authenticator struct {
	keys []keyEntry
}

// New creates an API key authenticator. Each spec's key is hashed
// immediately.
func New(specs []KeySpec) *Authenticator {
	a := &Authenticator{}
	for _, s := range specs {
		a.keys = append(a.keys, keyEntry{
			hash: sha256.Sum256([]byte(s.Key)),
			identity: auth.Identity{
				Subject:     s.Subject,
				ServiceTier: s.ServiceTier,
				Scopes:      s.Scopes,
			},
		})
	}
	return a
}

// Authenticate checks the Authorization bearer token: Yes on a known key,
// No on an unknown key, Abstain when no bearer credentials are present.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

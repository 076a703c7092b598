package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() (http.Handler, *bool) {
	reached := new(bool)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}), reached
}

func TestMiddlewareBypassEndpoint(t *testing.T) {
	chain := &Chain{DefaultDecision: No}
	mw := Middleware(chain, nil, []string{"/healthz"})

	handler, _ := okHandler()
	handler = mw(handler)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	chain := &Chain{DefaultDecision: No}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	handler, reached := okHandler()
	handler = mw(handler)

	req := httptest.NewRequest("POST", "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}
	if *reached {
		t.Error("handler ran despite rejected authentication")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestMiddlewareValidAuthPasses(t *testing.T) {
	chain := &Chain{
		Authenticators:  []Authenticator{vote(Yes, "alice")},
		DefaultDecision: No,
	}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	var gotSubject string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil {
			gotSubject = id.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
	if gotSubject != "alice" {
		t.Errorf("identity subject in context = %q, want %q", gotSubject, "alice")
	}
}

func TestMiddlewareAnonymousDefault(t *testing.T) {
	chain := &Chain{DefaultDecision: Yes}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	var gotSubject string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil {
			gotSubject = id.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("anonymous default: status = %d, want 200", rec.Code)
	}
	if gotSubject != "anonymous" {
		t.Errorf("identity subject = %q, want %q", gotSubject, "anonymous")
	}
}

func TestMiddlewareRateLimitExceeded(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			voterFunc(func(context.Context, *http.Request) Result {
				return Result{Decision: Yes, Identity: &Identity{Subject: "alice", ServiceTier: "limited"}}
			}),
		},
		DefaultDecision: No,
	}

	limiter := NewInProcessLimiter(map[string]TierConfig{
		"limited": {RequestsPerMinute: 2},
	}, 100)

	mw := Middleware(chain, limiter, DefaultBypassEndpoints)
	handler, _ := okHandler()
	handler = mw(handler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/chat", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("POST", "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-budget request: status = %d, want 429", rec.Code)
	}
}

func TestMiddlewareNilLimiterAllowsAll(t *testing.T) {
	chain := &Chain{
		Authenticators:  []Authenticator{vote(Yes, "alice")},
		DefaultDecision: No,
	}

	mw := Middleware(chain, nil, DefaultBypassEndpoints)
	handler, _ := okHandler()
	handler = mw(handler)

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("POST", "/api/chat", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
			break
		}
	}
}

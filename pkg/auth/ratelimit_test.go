package auth

import (
	"context"
	"errors"
	"testing"
)

func TestLimiterRejectsOverBudget(t *testing.T) {
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"default": {RequestsPerMinute: 2},
	}, 0)
	id := &Identity{Subject: "alice", ServiceTier: "default"}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, id); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, id); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("third request: err = %v, want ErrTooManyRequests", err)
	}
}

func TestLimiterIsolatesSubjects(t *testing.T) {
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"default": {RequestsPerMinute: 1},
	}, 0)

	ctx := context.Background()
	if err := limiter.Allow(ctx, &Identity{Subject: "alice", ServiceTier: "default"}); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if err := limiter.Allow(ctx, &Identity{Subject: "bob", ServiceTier: "default"}); err != nil {
		t.Errorf("bob must have an independent budget: %v", err)
	}
}

func TestLimiterUnknownTierUsesDefault(t *testing.T) {
	limiter := NewInProcessLimiter(nil, 1)
	id := &Identity{Subject: "alice", ServiceTier: "mystery"}

	ctx := context.Background()
	if err := limiter.Allow(ctx, id); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := limiter.Allow(ctx, id); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("second request: err = %v, want ErrTooManyRequests", err)
	}
}

func TestLimiterZeroBudgetMeansUnlimited(t *testing.T) {
	limiter := NewInProcessLimiter(nil, 0)
	id := &Identity{Subject: "alice"}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := limiter.Allow(ctx, id); err != nil {
			t.Fatalf("request %d rejected with no limit configured: %v", i+1, err)
		}
	}
}

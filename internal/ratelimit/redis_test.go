package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, "namebot:rl")
	policy := Policy{MaxPerWindow: 10, Window: time.Hour}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		result, err := limiter.Allow(ctx, 42, policy, start.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !result.Allowed || result.Count != i {
			t.Fatalf("call %d: expected allowed with count %d, got %+v", i, i, result)
		}
	}

	denied, err := limiter.Allow(ctx, 42, policy, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("call 11: %v", err)
	}
	if denied.Allowed || denied.Count != 10 {
		t.Fatalf("expected call 11 denied at count 10, got %+v", denied)
	}
	if got := mr.HGet(KeyForIdentity("namebot:rl", 42), "count"); got != "10" {
		t.Fatalf("expected denied call not to increment, stored count %q", got)
	}

	// The window opened with the first call, one minute after start.
	windowStart := start.Add(time.Minute)
	atBoundary, err := limiter.Allow(ctx, 42, policy, windowStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("boundary call: %v", err)
	}
	if atBoundary.Allowed {
		t.Fatalf("expected call exactly one window later to be denied, got %+v", atBoundary)
	}

	reset, err := limiter.Allow(ctx, 42, policy, windowStart.Add(time.Hour+time.Second))
	if err != nil {
		t.Fatalf("reset call: %v", err)
	}
	if !reset.Allowed || reset.Count != 1 {
		t.Fatalf("expected a fresh window with count 1, got %+v", reset)
	}

	other, err := limiter.Allow(ctx, 7, policy, start)
	if err != nil {
		t.Fatalf("other identity: %v", err)
	}
	if !other.Allowed || other.Count != 1 {
		t.Fatalf("expected other identity unaffected, got %+v", other)
	}
}

func TestManager_RedisOutageDoesNotGrantExtraAdmissions(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{
			MaxPerWindow: 10,
			Window:       time.Hour,
			RedisEnabled: true,
			RedisAddr:    mr.Addr(),
			RedisPrefix:  "namebot:rl",
		}
	}, NewMemoryLimiter(), func() time.Time {
		return now
	}, nil)
	t.Cleanup(func() { _ = manager.Close() })
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 12; i++ {
		result, err := manager.Allow(ctx, 42)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if result.Allowed {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("expected 10 admissions, got %d", allowed)
	}

	mr.Close()
	for i := 0; i < 10; i++ {
		result, err := manager.Allow(ctx, 42)
		if err == nil && result.Allowed {
			t.Fatalf("call %d after outage: expected no admission, got %+v", i+1, result)
		}
		if !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("call %d after outage: expected ErrBackendUnavailable, got %v", i+1, err)
		}
	}
}

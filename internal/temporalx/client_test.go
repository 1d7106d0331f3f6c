package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("CATALOG_SYNC_CRON", "")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatal("temporal should be disabled without an address")
	}
	if cfg.Namespace != "pathfinder" || cfg.TaskQueue != "pathfinder" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CatalogSyncCron != DefaultCatalogSyncCron || !cfg.CronEnabled() {
		t.Fatalf("cron default: %q", cfg.CatalogSyncCron)
	}
}

func TestNewClientDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), nil, Config{})
	if err != nil || c != nil {
		t.Fatalf("want nil client, got %v %v", c, err)
	}
}

func TestClampBackoff(t *testing.T) {
	base, max := 250*time.Millisecond, 2*time.Second
	for attempt, want := range map[int]time.Duration{1: 250 * time.Millisecond, 2: 500 * time.Millisecond, 4: 2 * time.Second, 10: 2 * time.Second} {
		if got := clampBackoff(base, max, attempt); got != want {
			t.Fatalf("attempt %d: want %s got %s", attempt, want, got)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{status.Error(codes.Unavailable, "down"), true},
		{status.Error(codes.PermissionDenied, "no"), false},
		{context.DeadlineExceeded, true},
		{errors.New("other"), false},
	}
	for _, tc := range cases {
		if got := isRetryableRPC(tc.err); got != tc.want {
			t.Fatalf("%v: want %v got %v", tc.err, tc.want, got)
		}
	}
}

func TestRetryPolicyRun(t *testing.T) {
	p := retryPolicy{base: time.Millisecond, max: 2 * time.Millisecond, wait: time.Second}

	calls := 0
	err := p.run(context.Background(), func(attempt int) (bool, error) {
		calls++
		if attempt < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("want success after 3 calls, got %d calls err=%v", calls, err)
	}

	calls = 0
	permanent := errors.New("permanent")
	err = p.run(context.Background(), func(int) (bool, error) {
		calls++
		return false, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent error retried: calls=%d err=%v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.run(ctx, func(int) (bool, error) { return true, errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}

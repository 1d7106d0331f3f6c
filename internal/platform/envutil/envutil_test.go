package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("ENVUTIL_STR", "  value ")
	t.Setenv("ENVUTIL_INT", "42")
	t.Setenv("ENVUTIL_BAD_INT", "x")
	t.Setenv("ENVUTIL_BOOL", "off")
	t.Setenv("ENVUTIL_SECS", "30")
	t.Setenv("ENVUTIL_FLOAT", "0.5")

	if got := String("ENVUTIL_STR", "d"); got != "value" {
		t.Fatalf("String: got %q", got)
	}
	if got := String("ENVUTIL_MISSING", "d"); got != "d" {
		t.Fatalf("String default: got %q", got)
	}
	if got := Int("ENVUTIL_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("ENVUTIL_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Bool("ENVUTIL_BOOL", true); got {
		t.Fatalf("Bool: got true")
	}
	if got := Seconds("ENVUTIL_SECS", time.Minute); got != 30*time.Second {
		t.Fatalf("Seconds: got %s", got)
	}
	if got := Float("ENVUTIL_FLOAT", 1); got != 0.5 {
		t.Fatalf("Float: got %v", got)
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Hour},
		{"90", 90 * time.Second},
		{"15m", 15 * time.Minute},
		{"-5", time.Hour},
		{"soon", time.Hour},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_DUR", tc.raw)
		if got := Duration("ENVUTIL_DUR", time.Hour); got != tc.want {
			t.Fatalf("Duration(%q): want %s got %s", tc.raw, tc.want, got)
		}
	}
}

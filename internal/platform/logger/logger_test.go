package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	cases := []struct {
		name string
		key  string
		val  interface{}
		want func(interface{}) bool
	}{
		{"password", "password", "hunter2", func(v interface{}) bool { return v == "[REDACTED]" }},
		{"refresh", "refresh", "abc", func(v interface{}) bool { return v == "[REDACTED]" }},
		{"credential", "google_credential", "abc", func(v interface{}) bool { return v == "[REDACTED]" }},
		{"user id hashed", "user_id", "6b0c6f2e", func(v interface{}) bool {
			s, ok := v.(string)
			return ok && len(s) == len("hash:")+12 && s[:5] == "hash:"
		}},
		{"plain", "external_id", "x1", func(v interface{}) bool { return v == "x1" }},
		{"jwt-looking value", "value", "aaaaaaaaaaaa.bbbbbbbbbbbb.cccc", func(v interface{}) bool { return v == "[REDACTED]" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := sanitizeKVs([]interface{}{tc.key, tc.val})
			if len(out) != 2 {
				t.Fatalf("unexpected kv length: %d", len(out))
			}
			if !tc.want(out[1]) {
				t.Fatalf("unexpected sanitized value for %s: %v", tc.key, out[1])
			}
		})
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %#v", out)
	}
}

func TestNewTestModeIsNop(t *testing.T) {
	l, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("silent", "k", "v")
	l.With("service", "X").Debug("also silent")
}

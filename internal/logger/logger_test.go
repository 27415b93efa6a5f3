package logger

import "testing"

func TestRedact(t *testing.T) {
	kv := []interface{}{"student_id", "s-1", "jwt_token", "abc.def.ghi", "Authorization", "Bearer x", "dangling"}

	out := redact(kv)

	if out[1] != "s-1" {
		t.Fatalf("expected student_id untouched, got %v", out[1])
	}
	if out[3] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("expected secrets redacted, got %v", out)
	}
	if out[6] != "dangling" {
		t.Fatalf("expected trailing key kept, got %v", out[6])
	}
	if kv[3] != "abc.def.ghi" {
		t.Fatalf("input slice must not be modified")
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", "prod"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("mode", mode).Debug("logger ready")
	}
}

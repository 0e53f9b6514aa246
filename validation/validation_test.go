package validation

import (
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	v := make(Violations)
	Required("first_name", "   ", v)
	Required("last_name", "Doe", v)
	if v["first_name"] != "required" {
		t.Errorf("expected required violation, got %q", v["first_name"])
	}
	if _, ok := v["last_name"]; ok {
		t.Error("non-blank value must pass")
	}
}

func TestMinLen(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"short", "1234", true},
		{"exact", "12345", false},
		{"blank left to Required", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := make(Violations)
			MinLen("zip", tt.value, 5, v)
			if _, got := v["zip"]; got != tt.want {
				t.Errorf("MinLen(%q) violation = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"jane@example.com", false},
		{"not-an-email", true},
		{"Jane <jane@example.com>", true},
		{"", false},
	}
	for _, tt := range tests {
		v := make(Violations)
		Email("email", tt.value, v)
		if _, got := v["email"]; got != tt.want {
			t.Errorf("Email(%q) violation = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNotFuture(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	v := make(Violations)
	NotFuture("dob", &future, now, v)
	NotFuture("other", &past, now, v)
	NotFuture("missing", nil, now, v)
	if v["dob"] != "in_future" {
		t.Errorf("expected in_future, got %q", v["dob"])
	}
	if len(v) != 1 {
		t.Errorf("expected exactly one violation, got %v", v)
	}
}

func TestFirstViolationWins(t *testing.T) {
	v := make(Violations)
	Required("status", "", v)
	OneOf("status", "", []string{"selected"}, v)
	if v["status"] != "required" {
		t.Errorf("expected first violation to stick, got %q", v["status"])
	}
}

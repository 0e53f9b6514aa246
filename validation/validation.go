package validation

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators. Each records at most one violation per field; the first
// failing rule for a field wins.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

// MinLen skips blank values so that Required reports them instead.
func MinLen(field, value string, n int, v Violations) {
	value = strings.TrimSpace(value)
	if value != "" && utf8.RuneCountInString(value) < n {
		v.add(field, "too_short")
	}
}

func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.add(field, "invalid_email")
	}
}

func NotFuture(field string, t *time.Time, now time.Time, v Violations) {
	if t != nil && t.After(now) {
		v.add(field, "in_future")
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, "not_allowed")
}

func (v Violations) add(field, rule string) {
	if _, exists := v[field]; !exists {
		v[field] = rule
	}
}

package permission

import (
	"fmt"
	"strings"
	"time"
)

// Condition grammar: an empty expression always holds; otherwise the
// expression must be of the form "time <op> HH:MM" where <op> is one of
// <, <=, >, >=, ==. The comparison uses the wall-clock minute of day.
var conditionOps = map[string]func(a, b int) bool{
	"<":  func(a, b int) bool { return a < b },
	"<=": func(a, b int) bool { return a <= b },
	">":  func(a, b int) bool { return a > b },
	">=": func(a, b int) bool { return a >= b },
	"==": func(a, b int) bool { return a == b },
}

// EvalCondition reports whether expr holds at the given time.
// An unparseable expression returns an error; callers treat that as the
// condition not holding.
func EvalCondition(expr string, now time.Time) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	fields := strings.Fields(expr)
	if len(fields) != 3 || fields[0] != "time" {
		return false, fmt.Errorf("unparseable condition %q", expr)
	}

	cmp, ok := conditionOps[fields[1]]
	if !ok {
		return false, fmt.Errorf("unparseable condition %q: unknown operator %q", expr, fields[1])
	}

	limit, err := parseClock(fields[2])
	if err != nil {
		return false, fmt.Errorf("unparseable condition %q: %w", expr, err)
	}

	return cmp(now.Hour()*60+now.Minute(), limit), nil
}

// parseClock converts "HH:MM" to a minute-of-day value.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidInstant is returned when a loosely typed value cannot be read as a point in time.
var ErrInvalidInstant = errors.New("invalid instant")

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant converts the date representations found in exported documents into a
// UTC time. Accepted inputs are RFC3339 and plain date strings, time.Time values,
// unix milliseconds, and timestamp objects shaped {"_seconds","_nanoseconds"} or
// {"seconds","nanos"}. Nil and blank strings yield a nil time without error.
func ParseInstant(v any) (*time.Time, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if val.IsZero() {
			return nil, nil
		}
		t := val.UTC()
		return &t, nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return nil, nil
		}
		t := val.UTC()
		return &t, nil
	case string:
		return parseInstantString(val)
	case json.Number:
		if ms, err := val.Int64(); err == nil {
			return fromUnixMillis(ms), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidInstant, val.String())
		}
		return fromFloatMillis(f)
	case float64:
		return fromFloatMillis(val)
	case int64:
		return fromUnixMillis(val), nil
	case int:
		return fromUnixMillis(int64(val)), nil
	case map[string]any:
		return parseTimestampObject(val)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidInstant, v)
	}
}

func parseInstantString(raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidInstant, raw)
}

func parseTimestampObject(m map[string]any) (*time.Time, error) {
	secKey, nanoKey := "_seconds", "_nanoseconds"
	if _, ok := m[secKey]; !ok {
		secKey, nanoKey = "seconds", "nanos"
	}
	rawSec, ok := m[secKey]
	if !ok {
		return nil, fmt.Errorf("%w: timestamp object without seconds", ErrInvalidInstant)
	}
	sec, err := toInt64(rawSec)
	if err != nil {
		return nil, err
	}
	var nanos int64
	if rawNanos, ok := m[nanoKey]; ok && rawNanos != nil {
		if nanos, err = toInt64(rawNanos); err != nil {
			return nil, err
		}
	}
	t := time.Unix(sec, nanos).UTC()
	return &t, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidInstant, n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInstant, n.String())
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: unsupported component %T", ErrInvalidInstant, v)
	}
}

func fromFloatMillis(f float64) (*time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstant, f)
	}
	return fromUnixMillis(int64(f)), nil
}

func fromUnixMillis(ms int64) *time.Time {
	t := time.UnixMilli(ms).UTC()
	return &t
}

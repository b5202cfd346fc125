package projects

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"buildflow/project-portal/project-portal-backend/internal/schema"
)

// coerceValue converts a submitted form value into the stored type of the field.
// Empty input becomes nil, except for checkboxes which are always a bool.
func coerceValue(f schema.Field, raw any) (any, error) {
	switch f.Kind {
	case schema.KindCheckbox:
		return coerceBool(f, raw)
	case schema.KindNumber:
		return coerceNumber(f, raw)
	case schema.KindDate:
		return coerceDate(f, raw)
	case schema.KindSelect:
		if f.IsReference() {
			return coerceReference(f, raw)
		}
		s, err := coerceText(f, raw)
		if err != nil || s == nil {
			return s, err
		}
		if !f.HasOption(s.(string)) {
			return nil, newValidationError(f.Name, RuleOption, "%q is not a valid choice for %s", s, f.Label)
		}
		return s, nil
	default:
		return coerceText(f, raw)
	}
}

func typeError(f schema.Field, raw any) error {
	return newValidationError(f.Name, RuleType, "invalid value %v for %s", raw, f.Label)
}

func coerceText(f schema.Field, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return v, nil
	}
	return nil, typeError(f, raw)
}

func coerceBool(f schema.Field, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "off", "0":
			return false, nil
		case "true", "on", "1":
			return true, nil
		}
	}
	return nil, typeError(f, raw)
}

// coerceNumber rejects NaN and infinities; they cannot be encoded as JSON
func coerceNumber(f schema.Field, raw any) (any, error) {
	var n float64
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, typeError(f, raw)
		}
		n = parsed
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, typeError(f, raw)
		}
		n = parsed
	default:
		return nil, typeError(f, raw)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, typeError(f, raw)
	}
	return n, nil
}

func coerceDate(f schema.Field, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v.Format(schema.DateLayout), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if _, err := time.Parse(schema.DateLayout, v); err != nil {
			return nil, typeError(f, raw)
		}
		return v, nil
	}
	return nil, typeError(f, raw)
}

func coerceReference(f schema.Field, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, typeError(f, raw)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, typeError(f, raw)
		}
		return n, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, typeError(f, raw)
		}
		return n, nil
	}
	return nil, typeError(f, raw)
}

// plannedDays is the whole number of days from start to end, rounded up.
// ok is false when either date is missing or end comes before start.
func plannedDays(start, end string) (float64, bool) {
	s, err := time.Parse(schema.DateLayout, start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse(schema.DateLayout, end)
	if err != nil {
		return 0, false
	}
	days := math.Ceil(e.Sub(s).Hours() / 24)
	if days < 0 {
		return 0, false
	}
	return days, true
}

package plugin

import (
	"fmt"
	"math"
	"strings"
)

type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeInteger ParamType = "integer"
	ParamTypeNumber  ParamType = "number"
	ParamTypeBoolean ParamType = "boolean"
)

// ParamSpec declares one accepted parameter: its type, default, whether it
// is required, and (for enumerated choices) the allowed values.
type ParamSpec struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
	Required    bool        `json:"required"`
	Choices     []string    `json:"choices,omitempty"`
}

type ParamSchema []ParamSpec

// InvalidParamsError carries every violated constraint, not just the first,
// so a caller can fix all issues in one round trip.
type InvalidParamsError struct {
	Violations []string
}

func (e *InvalidParamsError) Error() string {
	return "invalid plugin parameters: " + strings.Join(e.Violations, "; ")
}

// Validate checks caller-supplied params against the schema and returns a
// normalized map with defaults applied. All violations are collected.
func (s ParamSchema) Validate(params map[string]interface{}) (map[string]interface{}, error) {
	var violations []string
	out := make(map[string]interface{}, len(s))

	known := make(map[string]ParamSpec, len(s))
	for _, spec := range s {
		known[spec.Name] = spec
	}

	for name := range params {
		if _, ok := known[name]; !ok {
			violations = append(violations, fmt.Sprintf("unknown parameter %q", name))
		}
	}

	for _, spec := range s {
		raw, present := params[spec.Name]
		if !present || raw == nil {
			if spec.Required && spec.Default == nil {
				violations = append(violations, fmt.Sprintf("parameter %q is required", spec.Name))
				continue
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		value, err := coerce(spec, raw)
		if err != nil {
			violations = append(violations, err.Error())
			continue
		}
		out[spec.Name] = value
	}

	if len(violations) > 0 {
		return nil, &InvalidParamsError{Violations: violations}
	}
	return out, nil
}

func coerce(spec ParamSpec, raw interface{}) (interface{}, error) {
	switch spec.Type {
	case ParamTypeString:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a string", spec.Name)
		}
		if len(spec.Choices) > 0 {
			for _, c := range spec.Choices {
				if str == c {
					return str, nil
				}
			}
			return nil, fmt.Errorf("parameter %q must be one of [%s], got %q", spec.Name, strings.Join(spec.Choices, ", "), str)
		}
		return str, nil

	case ParamTypeInteger:
		// JSON numbers arrive as float64.
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("parameter %q must be an integer", spec.Name)
			}
			return int(v), nil
		default:
			return nil, fmt.Errorf("parameter %q must be an integer", spec.Name)
		}

	case ParamTypeNumber:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		default:
			return nil, fmt.Errorf("parameter %q must be a number", spec.Name)
		}

	case ParamTypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a boolean", spec.Name)
		}
		return b, nil
	}

	return nil, fmt.Errorf("parameter %q has unsupported type %q", spec.Name, spec.Type)
}

func intParam(params map[string]interface{}, name string, fallback int) int {
	if v, ok := params[name]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return fallback
}

func stringParam(params map[string]interface{}, name, fallback string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

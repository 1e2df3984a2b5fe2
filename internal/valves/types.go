// Package valves implements the gateway's live-updatable, validated,
// category-organised configuration store.
package valves

import "fmt"

// Type enumerates the supported valve value types.
type Type string

const (
	TypeBool   Type = "bool"
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeEnum   Type = "enum"
	TypePath   Type = "path"
	TypeURL    Type = "url"
)

// Validator checks a candidate value, returning a human-readable reason
// on rejection.
type Validator func(value any) error

// Category groups valves for UI rendering.
type Category struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

// Spec describes one configuration knob.
type Spec struct {
	Name            string
	Type            Type
	Default         any
	Title           string
	Description     string
	Category        string
	Required        bool
	Advanced        bool
	RestartRequired bool
	EnumOptions     []string
	DependsOn       string
	Validators      []Validator
}

// typeCheck performs the first validation stage: does value match Type.
func (s Spec) typeCheck(value any) error {
	switch s.Type {
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case TypeString, TypePath, TypeURL:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case TypeInt:
		if !isIntLike(value) {
			return fmt.Errorf("must be an integer")
		}
	case TypeFloat:
		if !isNumeric(value) {
			return fmt.Errorf("must be a number")
		}
	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		for _, opt := range s.EnumOptions {
			if opt == str {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", s.EnumOptions)
	}
	return nil
}

func isIntLike(v any) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	case float64:
		f := v.(float64)
		return f == float64(int64(f))
	default:
		return false
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// IntRange returns a Validator enforcing min <= value <= max for int-like
// types.
func IntRange(min, max int) Validator {
	return func(value any) error {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("must be numeric")
		}
		if int(f) < min || int(f) > max {
			return fmt.Errorf("must be between %d and %d", min, max)
		}
		return nil
	}
}

// FloatRange returns a Validator enforcing min <= value <= max.
func FloatRange(min, max float64) Validator {
	return func(value any) error {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("must be numeric")
		}
		if f < min {
			return fmt.Errorf("must be >= %v", min)
		}
		if f > max {
			return fmt.Errorf("must be <= %v", max)
		}
		return nil
	}
}

// NonEmpty rejects empty strings.
func NonEmpty() Validator {
	return func(value any) error {
		str, _ := value.(string)
		if str == "" {
			return fmt.Errorf("must not be empty")
		}
		return nil
	}
}

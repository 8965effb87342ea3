package capability

import (
	"context"
	"fmt"

	"github.com/carelink/hospital-ops/internal/faults"
)

// Param describes one argument of an operation. The name/type/description
// triple is consumed verbatim by the external agent layer; keep it stable.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "integer" or "boolean"
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Operation is one invokable capability, already bound to the identity it
// was constructed for.
type Operation struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`

	Handler func(ctx context.Context, args Args) (any, error) `json:"-"`
}

// Args is a decoded JSON argument object. Numbers arrive as float64.
type Args map[string]any

func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", faults.Validation(fmt.Sprintf("missing required argument %q", name))
	}
	s, ok := v.(string)
	if !ok {
		return "", faults.Validation(fmt.Sprintf("argument %q must be a string", name))
	}
	return s, nil
}

func (a Args) OptionalString(name string) string {
	if s, ok := a[name].(string); ok {
		return s
	}
	return ""
}

func (a Args) Int64(name string) (int64, error) {
	v, ok := a[name]
	if !ok {
		return 0, faults.Validation(fmt.Sprintf("missing required argument %q", name))
	}
	return coerceInt64(name, v)
}

// OptionalInt64 returns nil when the argument is absent.
func (a Args) OptionalInt64(name string) (*int64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := coerceInt64(name, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (a Args) OptionalBool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func coerceInt64(name string, v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, faults.Validation(fmt.Sprintf("argument %q must be an integer", name))
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, faults.Validation(fmt.Sprintf("argument %q must be an integer", name))
	}
}

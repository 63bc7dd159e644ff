package coercion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type identifies the target type of a mapping entry.
type Type string

const (
	TypeString   Type = "string"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeDecimal  Type = "decimal"
	TypeBool     Type = "bool"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeList     Type = "list"
)

// Policy controls how coercion failures are handled.
type Policy string

const (
	// PolicyStrict turns any coercion failure into an error.
	PolicyStrict Policy = "strict"
	// PolicyLenient attempts a best-effort conversion and lets the
	// caller fall back to the raw value when none is possible.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy maps the configuration spelling of a policy to its value.
// "coerce" is the historical spelling of lenient mode.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "strict", "":
		return PolicyStrict, nil
	case "coerce", "lenient":
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown coercion policy %q", s)
	}
}

// ValidTypes lists every recognized target type.
var ValidTypes = map[Type]bool{
	TypeString: true, TypeInt: true, TypeFloat: true, TypeDecimal: true,
	TypeBool: true, TypeDate: true, TypeDateTime: true, TypeList: true,
}

// Date is a calendar date with no time component. Keeping it distinct
// from time.Time prevents a date from ever serializing with a bogus
// midnight timestamp.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts "2006-01-02", optionally followed by a "T..." time
// part which is discarded.
func ParseDate(s string) (Date, error) {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseDateTime accepts ISO-8601 timestamps, tolerating a trailing "Z"
// and a missing offset.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

// CoerceError describes a single value that could not be converted.
type CoerceError struct {
	Type  Type
	Value any
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("cannot coerce %v (%T) to %s", e.Value, e.Value, e.Type)
}

// Coerce converts value to the requested type under the given policy.
// itemType applies only when typ is TypeList and gives the element
// type; the zero value means elements are left as-is.
//
// Under PolicyStrict a value must already carry the target type: "10"
// does not become the int 10, the int 5 does not become "5", and a
// scalar is never wrapped into a list. Under PolicyLenient well-known
// textual forms are accepted ("10" -> 10, "yes" -> true) and scalars
// wrap into single-element lists. Booleans never silently convert to
// numbers under either policy.
func Coerce(value any, typ Type, policy Policy, itemType Type) (any, error) {
	switch typ {
	case TypeString:
		return coerceString(value, policy)
	case TypeInt:
		return coerceInt(value, policy)
	case TypeFloat:
		return coerceFloat(value, policy)
	case TypeDecimal:
		return coerceDecimal(value, policy)
	case TypeBool:
		return coerceBool(value, policy)
	case TypeDate:
		return coerceDate(value, policy)
	case TypeDateTime:
		return coerceDateTime(value, policy)
	case TypeList:
		return coerceList(value, policy, itemType)
	case "":
		return value, nil
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
}

func coerceString(value any, policy Policy) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	if policy != PolicyLenient {
		return nil, &CoerceError{Type: TypeString, Value: value}
	}
	switch v := value.(type) {
	case json.Number:
		return v.String(), nil
	case Decimal:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case nil:
		return nil, &CoerceError{Type: TypeString, Value: value}
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func coerceInt(value any, policy Policy) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, &CoerceError{Type: TypeInt, Value: value}
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if policy == PolicyLenient {
			if f, err := v.Float64(); err == nil {
				return int64(f), nil
			}
		}
		return nil, &CoerceError{Type: TypeInt, Value: value}
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		if policy == PolicyLenient {
			return int64(v), nil
		}
		return nil, &CoerceError{Type: TypeInt, Value: value}
	case string:
		if policy != PolicyLenient {
			return nil, &CoerceError{Type: TypeInt, Value: value}
		}
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), nil
		}
		return nil, &CoerceError{Type: TypeInt, Value: value}
	default:
		return nil, &CoerceError{Type: TypeInt, Value: value}
	}
}

func coerceFloat(value any, policy Policy) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, &CoerceError{Type: TypeFloat, Value: value}
	case Decimal:
		return v, nil
	case json.Number:
		d, err := DecimalFromNumber(v)
		if err != nil {
			return nil, &CoerceError{Type: TypeFloat, Value: value}
		}
		return d, nil
	case int:
		return DecimalFromInt(int64(v)), nil
	case int64:
		return DecimalFromInt(v), nil
	case float64:
		d, err := DecimalFromFloat(v)
		if err != nil {
			return nil, &CoerceError{Type: TypeFloat, Value: value}
		}
		return d, nil
	case string:
		if policy != PolicyLenient {
			return nil, &CoerceError{Type: TypeFloat, Value: value}
		}
		d, err := ParseDecimal(v)
		if err != nil {
			return nil, &CoerceError{Type: TypeFloat, Value: value}
		}
		return d, nil
	default:
		return nil, &CoerceError{Type: TypeFloat, Value: value}
	}
}

func coerceDecimal(value any, policy Policy) (any, error) {
	if d, ok := value.(Decimal); ok {
		return d, nil
	}
	if policy != PolicyLenient {
		return nil, &CoerceError{Type: TypeDecimal, Value: value}
	}
	switch v := value.(type) {
	case string:
		d, err := ParseDecimal(strings.TrimSpace(v))
		if err != nil {
			return nil, &CoerceError{Type: TypeDecimal, Value: value}
		}
		return d, nil
	case json.Number:
		d, err := DecimalFromNumber(v)
		if err != nil {
			return nil, &CoerceError{Type: TypeDecimal, Value: value}
		}
		return d, nil
	case int:
		return DecimalFromInt(int64(v)), nil
	case int64:
		return DecimalFromInt(v), nil
	case float64:
		d, err := DecimalFromFloat(v)
		if err != nil {
			return nil, &CoerceError{Type: TypeDecimal, Value: value}
		}
		return d, nil
	default:
		return nil, &CoerceError{Type: TypeDecimal, Value: value}
	}
}

func coerceBool(value any, policy Policy) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if policy != PolicyLenient {
			return nil, &CoerceError{Type: TypeBool, Value: value}
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, &CoerceError{Type: TypeBool, Value: value}
	case json.Number:
		if policy != PolicyLenient {
			return nil, &CoerceError{Type: TypeBool, Value: value}
		}
		switch v.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, &CoerceError{Type: TypeBool, Value: value}
	default:
		return nil, &CoerceError{Type: TypeBool, Value: value}
	}
}

func coerceDate(value any, policy Policy) (any, error) {
	switch v := value.(type) {
	case Date:
		return v, nil
	case time.Time:
		if policy == PolicyLenient {
			return Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}, nil
		}
	case string:
		if policy == PolicyLenient {
			d, err := ParseDate(v)
			if err != nil {
				return nil, &CoerceError{Type: TypeDate, Value: value}
			}
			return d, nil
		}
	}
	return nil, &CoerceError{Type: TypeDate, Value: value}
}

func coerceDateTime(value any, policy Policy) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if policy == PolicyLenient {
			t, err := ParseDateTime(v)
			if err != nil {
				return nil, &CoerceError{Type: TypeDateTime, Value: value}
			}
			return t, nil
		}
	}
	return nil, &CoerceError{Type: TypeDateTime, Value: value}
}

func coerceList(value any, policy Policy, itemType Type) (any, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case nil:
		return nil, &CoerceError{Type: TypeList, Value: value}
	default:
		// Only lenient mode wraps a scalar into a single-element list.
		if policy != PolicyLenient {
			return nil, &CoerceError{Type: TypeList, Value: value}
		}
		items = []any{v}
	}
	if itemType == "" {
		return items, nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		c, err := Coerce(item, itemType, policy, "")
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// IsEmpty reports whether a resolved value counts as absent: nil, a
// blank or whitespace-only string, or an empty list.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

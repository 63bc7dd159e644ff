package coercion

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Constraints are the optional per-field validation rules applied after
// a value has been coerced.
type Constraints struct {
	MaxLength *int     `yaml:"max_length,omitempty"`
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	Regex     string   `yaml:"regex,omitempty"`
}

// Empty reports whether no constraint is set.
func (c Constraints) Empty() bool {
	return c.MaxLength == nil && c.Min == nil && c.Max == nil && c.Regex == ""
}

// ConstraintError reports the first constraint a value violated.
type ConstraintError struct {
	Rule   string
	Detail string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated: %s", e.Rule, e.Detail)
}

// Validate checks value against the constraints in a fixed order:
// max_length, min, max, regex. Numeric bounds compare exactly through
// Decimal, never through binary floats. The regex is prefix-anchored.
func (c Constraints) Validate(value any) error {
	if c.MaxLength != nil {
		if s, ok := value.(string); ok && len([]rune(s)) > *c.MaxLength {
			return &ConstraintError{
				Rule:   "max_length",
				Detail: fmt.Sprintf("length %d exceeds %d", len([]rune(s)), *c.MaxLength),
			}
		}
	}
	if c.Min != nil || c.Max != nil {
		d, ok := asDecimal(value)
		if ok {
			if c.Min != nil {
				min, err := DecimalFromFloat(*c.Min)
				if err == nil && d.Cmp(min) < 0 {
					return &ConstraintError{
						Rule:   "min",
						Detail: fmt.Sprintf("%s is below %s", d, min),
					}
				}
			}
			if c.Max != nil {
				max, err := DecimalFromFloat(*c.Max)
				if err == nil && d.Cmp(max) > 0 {
					return &ConstraintError{
						Rule:   "max",
						Detail: fmt.Sprintf("%s is above %s", d, max),
					}
				}
			}
		}
	}
	if c.Regex != "" {
		s, ok := value.(string)
		if !ok {
			// Regex constraints only apply to strings.
			return nil
		}
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return &ConstraintError{Rule: "regex", Detail: fmt.Sprintf("invalid pattern: %v", err)}
		}
		// Anchor at the start only, matching prefix semantics.
		anchored, err := regexp.Compile("^(?:" + c.Regex + ")")
		if err == nil {
			re = anchored
		}
		if !re.MatchString(s) {
			return &ConstraintError{
				Rule:   "regex",
				Detail: fmt.Sprintf("%q does not match %q", s, c.Regex),
			}
		}
	}
	return nil
}

// asDecimal admits only numeric values. Strings never qualify for
// min/max bounds, even when they would parse as numbers.
func asDecimal(value any) (Decimal, bool) {
	switch v := value.(type) {
	case Decimal:
		return v, true
	case int64:
		return DecimalFromInt(v), true
	case int:
		return DecimalFromInt(int64(v)), true
	case float64:
		d, err := DecimalFromFloat(v)
		return d, err == nil
	case json.Number:
		d, err := DecimalFromNumber(v)
		return d, err == nil
	default:
		return Decimal{}, false
	}
}

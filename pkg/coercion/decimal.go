// Package coercion converts raw feed values into typed values and
// validates them against per-field constraints.
package coercion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Decimal is an exact arbitrary-precision decimal number. It exists so
// that price and numeric comparisons never go through binary floating
// point: values parsed from the feed and values parsed from destination
// responses compare equal whenever their decimal expansions are equal.
type Decimal struct {
	rat *big.Rat
}

// ParseDecimal parses a decimal number from its string form.
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, fmt.Errorf("empty decimal string")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	return Decimal{rat: r}, nil
}

// DecimalFromInt returns the Decimal for an integer.
func DecimalFromInt(v int64) Decimal {
	return Decimal{rat: new(big.Rat).SetInt64(v)}
}

// DecimalFromFloat converts a float64 via its shortest decimal
// representation, so 0.1 becomes exactly 1/10 rather than the binary
// approximation.
func DecimalFromFloat(v float64) (Decimal, error) {
	return ParseDecimal(strconv.FormatFloat(v, 'g', -1, 64))
}

// DecimalFromNumber converts a json.Number.
func DecimalFromNumber(n json.Number) (Decimal, error) {
	return ParseDecimal(n.String())
}

// IsZero reports whether d is the zero value or numerically zero.
func (d Decimal) IsZero() bool {
	return d.rat == nil || d.rat.Sign() == 0
}

// Cmp compares d and other, returning -1, 0 or +1.
func (d Decimal) Cmp(other Decimal) int {
	return d.norm().Cmp(other.norm())
}

func (d Decimal) norm() *big.Rat {
	if d.rat == nil {
		return new(big.Rat)
	}
	return d.rat
}

// String renders the exact value without trailing zeros.
func (d Decimal) String() string {
	r := d.norm()
	if r.IsInt() {
		return r.Num().String()
	}
	// Render with enough digits, then strip trailing zeros.
	s := r.FloatString(32)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// StringFixed renders the value rounded half away from zero to the
// given number of fractional digits. StringFixed(4) is the canonical
// form used for numeric diff comparison and price serialization.
func (d Decimal) StringFixed(places int) string {
	r := d.norm()
	neg := r.Sign() < 0
	abs := new(big.Rat).Abs(r)

	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	scaled := new(big.Rat).Mul(abs, new(big.Rat).SetInt(pow))

	// Round half up on the absolute value, i.e. half away from zero.
	num := scaled.Num()
	den := scaled.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	rem.Mul(rem, big.NewInt(2))
	if rem.Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	digits := q.String()
	if places > 0 {
		if len(digits) <= places {
			digits = strings.Repeat("0", places-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-places] + "." + digits[len(digits)-places:]
	}
	if neg && strings.Trim(digits, "0.") != "" {
		digits = "-" + digits
	}
	return digits
}

// MarshalJSON renders the decimal as a JSON number literal.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

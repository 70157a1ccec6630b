package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary-precision integer (balances in the chain's smallest
// unit). The zero value is 0. It serializes as decimal text so values beyond
// the 64-bit range survive JSON round trips exactly.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n int64) Amount {
	return Amount{v: big.NewInt(n)}
}

// AmountFromBig copies b into an Amount.
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(b)}
}

// ParseAmount parses decimal text or 0x-prefixed hex text.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	base := 10
	digits := s
	neg := false
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	}
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return Amount{v: v}, nil
}

// MustAmount parses s and panics on failure. Intended for tests and literals.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

// String renders decimal text.
func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

// Cmp compares a and b like big.Int.Cmp.
func (a Amount) Cmp(b Amount) int {
	return a.Big().Cmp(b.Big())
}

// Equal reports numeric equality.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.v != nil && a.v.Sign() < 0
}

// MarshalJSON renders the amount as a JSON string of decimal digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string (decimal or 0x hex) or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	} else {
		text = string(data)
	}
	parsed, err := ParseAmount(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

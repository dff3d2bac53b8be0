package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in minor currency units (paise/cents).
// It is stored as BIGINT and serialized as a decimal with two fraction digits.
type Money int64

// NewMoneyFromFloat converts a decimal amount to Money, rounding half away from zero
func NewMoneyFromFloat(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// Float64 returns the amount in major units
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// MulInt multiplies the amount by an integer quantity (e.g. hourly rate x hours)
func (m Money) MulInt(n int) Money {
	return m * Money(n)
}

// ShareBps returns the given share of m expressed in basis points (8500 = 85%).
// Rounds half up on the minor unit so the result is reproducible.
func (m Money) ShareBps(bps int64) Money {
	v := int64(m) * bps
	if v >= 0 {
		return Money((v + 5000) / 10000)
	}
	return Money((v - 5000) / 10000)
}

// String formats the amount as "1234.50"
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. Accepts numbers and numeric strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err2 := json.Unmarshal(data, &s); err2 != nil {
			return fmt.Errorf("invalid amount: %s", string(data))
		}
		raw = json.Number(s)
	}
	f, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = NewMoneyFromFloat(f)
	return nil
}

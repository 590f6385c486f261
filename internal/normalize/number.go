package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseOptionalNumber accepts a number or a numeric string and returns nil
// for anything else, including blank strings, NaN and infinities.
func ParseOptionalNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Number is a JSON value that decodes numbers and numeric strings.
// Any other JSON value decodes to an empty Number rather than an error.
type Number struct {
	Value *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	n.Value = ParseOptionalNumber(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// Int rounds the value to the nearest integer, half away from zero. Counts
// arrive as floats or strings, and a fractional count such as "12.6" becomes 13.
func (n Number) Int() *int {
	if n.Value == nil {
		return nil
	}
	i := int(math.Round(*n.Value))
	return &i
}

func stringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Package util provides small helpers shared across the engine.
package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LooseFloat is a float64 that unmarshals from a JSON number, a numeric
// string, or null. Browser sensor payloads are loose about numeric types;
// null and the empty string leave Set false instead of failing the payload.
type LooseFloat struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. Non-finite values are rejected
// so NaN can never enter engine state through a payload.
func (f *LooseFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		f.Set = false
		return nil
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			f.Set = false
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", str, err)
		}
		return f.set(v)
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return f.set(v)
}

func (f *LooseFloat) set(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("non-finite number %f", v)
	}
	f.Value = v
	f.Set = true
	return nil
}

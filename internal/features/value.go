package features

import "strconv"

// Value is an explicit optional numeric. A feature that cannot be computed
// (insufficient rolling history, zero denominator, absent input) is carried
// as an invalid Value, never as zero: downstream imputation is the only
// place where "no data" may become a number.
type Value struct {
	Float float64
	Valid bool
}

func Some(f float64) Value {
	return Value{Float: f, Valid: true}
}

func None() Value {
	return Value{}
}

// Or returns the value, or def when undefined.
func (v Value) Or(def float64) float64 {
	if v.Valid {
		return v.Float
	}
	return def
}

// String renders the value for CSV output; undefined renders as the empty
// cell. The shortest round-trip float form keeps reruns byte-identical.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

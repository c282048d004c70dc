package interp

// Signal carries explicit return propagation through bodies. Statements
// that produce a value return HasValue=true; control flow inspects only
// that flag, never the value's type.
type Signal struct {
	HasValue bool
	Value    any
}

// None is the empty signal.
func None() Signal {
	return Signal{}
}

// ValueOf wraps v in a carrying signal. A nil value still counts as a
// produced value; null is a legitimate function result.
func ValueOf(v any) Signal {
	return Signal{HasValue: true, Value: v}
}

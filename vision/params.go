package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Params records the inputs and settings that produced a generated image.
// It travels with the image for provenance and survives a JSON round trip
// through image metadata without losing key or numeric type information.
type Params map[string]Value

// Clone returns an independent copy so per-image bags can diverge without
// cross-contamination.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// Value is one generation parameter: a string, integer, float, or bool.
// The closed set keeps the metadata round trip well-defined; in particular
// integers are never silently widened to floats on decode.
type Value struct {
	kind valueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(s string) Value { return Value{kind: kindString, s: s} }
func Int(i int64) Value     { return Value{kind: kindInt, i: i} }
func Float(f float64) Value { return Value{kind: kindFloat, f: f} }
func Bool(b bool) Value     { return Value{kind: kindBool, b: b} }

// StringValue returns the string payload and whether the value is a string.
func (v Value) StringValue() (string, bool) { return v.s, v.kind == kindString }

// IntValue returns the integer payload and whether the value is an integer.
func (v Value) IntValue() (int64, bool) { return v.i, v.kind == kindInt }

// FloatValue returns the float payload and whether the value is a float.
func (v Value) FloatValue() (float64, bool) { return v.f, v.kind == kindFloat }

// BoolValue returns the bool payload and whether the value is a bool.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == kindBool }

func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return fmt.Sprintf("%d", v.i)
	case kindFloat:
		return fmt.Sprintf("%g", v.f)
	case kindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return v.s
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindInt:
		return json.Marshal(v.i)
	case kindFloat:
		return json.Marshal(v.f)
	case kindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case string:
		*v = String(t)
	case bool:
		*v = Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil && !strings.ContainsAny(t.String(), ".eE") {
			*v = Int(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return err
		}
		*v = Float(f)
	default:
		return fmt.Errorf("generation parameter value must be a string, number, or bool, got %s", string(b))
	}
	return nil
}

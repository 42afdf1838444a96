// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package params models vCornea simulation parameters as tagged scalar
// values. The simulation consumes a generated Python parameter file, so the
// distinction between integer and floating-point values must survive from
// caller input all the way to serialization: Python renders 10 and 1500.0
// differently, and the batch script does arithmetic on both.
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the scalar type carried by a Value.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is one scalar parameter value. The zero Value is a false bool.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool wraps a boolean parameter value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int wraps an integer parameter value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a floating-point parameter value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String wraps a string parameter value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the scalar type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNumeric reports whether the value is an int or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsBool returns the boolean payload. Only meaningful for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsFloat returns the numeric payload widened to float64.
// Only meaningful for numeric kinds.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// AsInt returns the numeric payload truncated to int64.
func (v Value) AsInt() int64 {
	if v.kind == KindFloat {
		return int64(v.f)
	}
	return v.i
}

// AsString returns the string payload. Only meaningful for KindString.
func (v Value) AsString() string { return v.s }

// Equal compares two values the way the simulation's own language would:
// numeric values compare by magnitude regardless of int/float kind, so
// Int(750) equals Float(750.0) and no spurious change is detected when a
// caller supplies one kind and the default table carries the other.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		return v.AsFloat() == o.AsFloat()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	default:
		return false
	}
}

// PythonLiteral renders the value exactly as Python's repr() would, so the
// generated parameter file is byte-reproducible by the original tooling:
// True/False for booleans, 10 for ints, 1500.0 for integral floats,
// '...'-quoted strings.
func (v Value) PythonLiteral() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		// repr(1500.0) keeps the trailing .0 that %g drops.
		if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "inf") && !strings.Contains(s, "NaN") {
			s += ".0"
		}
		return s
	case KindString:
		r := strings.ReplaceAll(v.s, `\`, `\\`)
		r = strings.ReplaceAll(r, `'`, `\'`)
		return "'" + r + "'"
	default:
		return "None"
	}
}

// NameLiteral renders the value for use inside a run name: booleans as
// True/False, integral floats without the decimal (SLS1500 rather than
// SLS1500.0), everything else as its plain text form.
func (v Value) NameLiteral() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return strconv.FormatInt(int64(v.f), 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// MarshalJSON emits the native JSON scalar for the value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores a Value from a JSON scalar, keeping the int/float
// distinction by inspecting the raw number text.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	case json.Number:
		text := t.String()
		if !strings.ContainsAny(text, ".eE") {
			n, err := t.Int64()
			if err != nil {
				return fmt.Errorf("parse int parameter value %q: %w", text, err)
			}
			*v = Int(n)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("parse float parameter value %q: %w", text, err)
		}
		*v = Float(f)
	default:
		return fmt.Errorf("unsupported parameter value %s", string(data))
	}
	return nil
}

// Parse interprets command-line style text as a Value: true/false become
// booleans, digit-only text becomes an int, numeric text with a decimal
// point or exponent becomes a float, anything else stays a string.
func Parse(text string) Value {
	switch strings.ToLower(text) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return Float(f)
	}
	return String(text)
}

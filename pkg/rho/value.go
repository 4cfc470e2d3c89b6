// Package rho holds the runtime data model shared by the bytecode layer,
// the RSpace storage backends and the VM: values, process lifecycle
// states and channel names.
package rho

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the variant of a Value.
type Type uint8

const (
	TypeNil Type = iota
	TypeInt
	TypeBool
	TypeStr
	TypeName
	TypeList
	TypeTuple
	TypeMap
	TypePar
)

var typeNames = [...]string{
	TypeNil:   "Nil",
	TypeInt:   "Int",
	TypeBool:  "Bool",
	TypeStr:   "Str",
	TypeName:  "Name",
	TypeList:  "List",
	TypeTuple: "Tuple",
	TypeMap:   "Map",
	TypePar:   "Par",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Value is a runtime datum. Values are immutable once built; the slice
// backed variants must not be modified after they are handed to a VM or
// stored in RSpace.
type Value interface {
	Type() Type
	String() string
}

type (
	Int   int64
	Bool  bool
	Str   string
	Name  string
	List  []Value
	Tuple []Value
	Map   []Pair

	// Par is a parallel composition of running processes.
	// Handles are compared by identity.
	Par []ProcessHandle
)

// NilValue is the type of Nil.
type NilValue struct{}

// Nil is the empty value.
var Nil Value = NilValue{}

// Pair is one key/value association of a Map. Map keys must not be Par.
type Pair struct {
	Key   Value
	Value Value
}

func (NilValue) Type() Type { return TypeNil }
func (Int) Type() Type      { return TypeInt }
func (Bool) Type() Type     { return TypeBool }
func (Str) Type() Type      { return TypeStr }
func (Name) Type() Type     { return TypeName }
func (List) Type() Type     { return TypeList }
func (Tuple) Type() Type    { return TypeTuple }
func (Map) Type() Type      { return TypeMap }
func (Par) Type() Type      { return TypePar }

func (NilValue) String() string { return "Nil" }
func (v Int) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v Bool) String() string   { return strconv.FormatBool(bool(v)) }
func (v Str) String() string    { return strconv.Quote(string(v)) }
func (v Name) String() string   { return string(v) }
func (v List) String() string   { return joinValues("[", []Value(v), "]") }
func (v Tuple) String() string  { return joinValues("(", []Value(v), ")") }

func (v Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range v {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Key.String())
		sb.WriteString(": ")
		sb.WriteString(p.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (v Par) String() string {
	var sb strings.Builder
	sb.WriteString("Par(")
	for i, h := range v {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(h.State().String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func joinValues(open string, vs []Value, close string) string {
	var sb strings.Builder
	sb.WriteString(open)
	for i, v := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteString(close)
	return sb.String()
}

// TypeOf returns the type of v, treating a nil interface as Nil.
func TypeOf(v Value) Type {
	if v == nil {
		return TypeNil
	}
	return v.Type()
}

// IsNil reports whether v is Nil (or an unset interface).
func IsNil(v Value) bool {
	return TypeOf(v) == TypeNil
}

// Equal reports structural equality. Par values are equal when they
// hold the same process handles in the same order.
func Equal(a, b Value) bool {
	if TypeOf(a) != TypeOf(b) {
		return false
	}
	switch x := a.(type) {
	case nil, NilValue:
		return true
	case Int:
		return x == b.(Int)
	case Bool:
		return x == b.(Bool)
	case Str:
		return x == b.(Str)
	case Name:
		return x == b.(Name)
	case List:
		return equalSeq(x, b.(List))
	case Tuple:
		return equalSeq(x, b.(Tuple))
	case Map:
		y := b.(Map)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case Par:
		y := b.(Par)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	return false
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Resolved reports whether v holds usable data. Only a Par can be
// unresolved: it is resolved once every process in it has reached a
// terminal Value state.
func Resolved(v Value) bool {
	par, ok := v.(Par)
	if !ok {
		return true
	}
	for _, h := range par {
		if h == nil || h.State().Status != StatusValue {
			return false
		}
	}
	return true
}

// Key returns a canonical encoding of v such that Key(a) == Key(b)
// exactly when Equal(a, b). Strings are length prefixed so that no
// content can forge a boundary.
func Key(v Value) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil, NilValue:
		sb.WriteByte('n')
	case Int:
		sb.WriteByte('i')
		sb.WriteString(strconv.FormatInt(int64(x), 10))
		sb.WriteByte(';')
	case Bool:
		if x {
			sb.WriteString("bt")
		} else {
			sb.WriteString("bf")
		}
	case Str:
		writeText(sb, 's', string(x))
	case Name:
		writeText(sb, 'a', string(x))
	case List:
		writeSeq(sb, 'l', x)
	case Tuple:
		writeSeq(sb, 't', x)
	case Map:
		sb.WriteByte('m')
		sb.WriteString(strconv.Itoa(len(x)))
		sb.WriteByte(':')
		for _, p := range x {
			writeKey(sb, p.Key)
			writeKey(sb, p.Value)
		}
	case Par:
		sb.WriteByte('p')
		sb.WriteString(strconv.Itoa(len(x)))
		sb.WriteByte(':')
		for _, h := range x {
			fmt.Fprintf(sb, "%p;", h)
		}
	}
}

func writeText(sb *strings.Builder, tag byte, s string) {
	sb.WriteByte(tag)
	sb.WriteString(strconv.Itoa(len(s)))
	sb.WriteByte(':')
	sb.WriteString(s)
}

func writeSeq(sb *strings.Builder, tag byte, vs []Value) {
	sb.WriteByte(tag)
	sb.WriteString(strconv.Itoa(len(vs)))
	sb.WriteByte(':')
	for _, v := range vs {
		writeKey(sb, v)
	}
}

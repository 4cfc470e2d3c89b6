package rho

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnencodable is returned when a value cannot leave the process,
// which is the case for Par (it holds live process handles).
var ErrUnencodable = errors.New("value cannot be encoded")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("rho: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireValue is the CBOR shape of a Value. Map entries are flattened into
// Items as key, value, key, value...
type wireValue struct {
	T     Type        `cbor:"1,keyasint"`
	I     int64       `cbor:"2,keyasint,omitempty"`
	S     string      `cbor:"3,keyasint,omitempty"`
	B     bool        `cbor:"4,keyasint,omitempty"`
	Items []wireValue `cbor:"5,keyasint,omitempty"`
}

// MarshalValue encodes v as canonical CBOR.
func MarshalValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalValue decodes a value produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("rho: unmarshal value: %w", err)
	}
	return fromWire(w)
}

func toWire(v Value) (wireValue, error) {
	switch x := v.(type) {
	case nil, NilValue:
		return wireValue{T: TypeNil}, nil
	case Int:
		return wireValue{T: TypeInt, I: int64(x)}, nil
	case Bool:
		return wireValue{T: TypeBool, B: bool(x)}, nil
	case Str:
		return wireValue{T: TypeStr, S: string(x)}, nil
	case Name:
		return wireValue{T: TypeName, S: string(x)}, nil
	case List:
		items, err := toWireSeq(x)
		return wireValue{T: TypeList, Items: items}, err
	case Tuple:
		items, err := toWireSeq(x)
		return wireValue{T: TypeTuple, Items: items}, err
	case Map:
		items := make([]wireValue, 0, 2*len(x))
		for _, p := range x {
			k, err := toWire(p.Key)
			if err != nil {
				return wireValue{}, err
			}
			val, err := toWire(p.Value)
			if err != nil {
				return wireValue{}, err
			}
			items = append(items, k, val)
		}
		return wireValue{T: TypeMap, Items: items}, nil
	case Par:
		return wireValue{}, fmt.Errorf("%w: Par", ErrUnencodable)
	}
	return wireValue{}, fmt.Errorf("%w: %T", ErrUnencodable, v)
}

func toWireSeq(vs []Value) ([]wireValue, error) {
	items := make([]wireValue, len(vs))
	for i, v := range vs {
		w, err := toWire(v)
		if err != nil {
			return nil, err
		}
		items[i] = w
	}
	return items, nil
}

func fromWire(w wireValue) (Value, error) {
	switch w.T {
	case TypeNil:
		return Nil, nil
	case TypeInt:
		return Int(w.I), nil
	case TypeBool:
		return Bool(w.B), nil
	case TypeStr:
		return Str(w.S), nil
	case TypeName:
		return Name(w.S), nil
	case TypeList:
		items, err := fromWireSeq(w.Items)
		return List(items), err
	case TypeTuple:
		items, err := fromWireSeq(w.Items)
		return Tuple(items), err
	case TypeMap:
		if len(w.Items)%2 != 0 {
			return nil, fmt.Errorf("rho: map with odd item count %d", len(w.Items))
		}
		m := make(Map, 0, len(w.Items)/2)
		for i := 0; i < len(w.Items); i += 2 {
			k, err := fromWire(w.Items[i])
			if err != nil {
				return nil, err
			}
			v, err := fromWire(w.Items[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, Pair{Key: k, Value: v})
		}
		return m, nil
	}
	return nil, fmt.Errorf("rho: unknown wire type %d", w.T)
}

func fromWireSeq(ws []wireValue) ([]Value, error) {
	vs := make([]Value, len(ws))
	for i, w := range ws {
		v, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

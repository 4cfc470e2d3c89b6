package bytecode

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/chazu/rhovm/pkg/rho"
)

// ConstKind identifies the variant of a Constant.
type ConstKind uint8

const (
	ConstString ConstKind = iota + 1
	ConstInt
	ConstBool
	ConstURI
	ConstBytes
	ConstIdent
	ConstValue
)

func (k ConstKind) String() string {
	switch k {
	case ConstString:
		return "string"
	case ConstInt:
		return "int"
	case ConstBool:
		return "bool"
	case ConstURI:
		return "uri"
	case ConstBytes:
		return "bytes"
	case ConstIdent:
		return "ident"
	case ConstValue:
		return "value"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Constant is one pool entry. Only the field matching Kind is meaningful:
// Str for string, URI and identifier constants.
type Constant struct {
	Kind  ConstKind
	Str   string
	Int   int64
	Bool  bool
	Bytes []byte
	Value rho.Value
}

// Equal compares two constants structurally.
func (c Constant) Equal(o Constant) bool {
	return c.Kind == o.Kind && c.key() == o.key()
}

// key is the canonical dedup key; the kind prefix keeps the string "1"
// apart from the integer 1 and from the identifier 1.
func (c Constant) key() string {
	switch c.Kind {
	case ConstString, ConstURI, ConstIdent:
		return strconv.Itoa(int(c.Kind)) + ":" + c.Str
	case ConstInt:
		return strconv.Itoa(int(c.Kind)) + ":" + strconv.FormatInt(c.Int, 10)
	case ConstBool:
		return strconv.Itoa(int(c.Kind)) + ":" + strconv.FormatBool(c.Bool)
	case ConstBytes:
		return strconv.Itoa(int(c.Kind)) + ":" + string(c.Bytes)
	case ConstValue:
		return strconv.Itoa(int(c.Kind)) + ":" + rho.Key(c.Value)
	}
	return "?"
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstURI:
		return "`" + c.Str + "`"
	case ConstIdent:
		return c.Str
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstBytes:
		return fmt.Sprintf("0x%x", c.Bytes)
	case ConstValue:
		return c.Value.String()
	}
	return "?"
}

// ConstantPool is a deduplicating, append-only table of constants.
// Indexes are stable for the life of the pool; only Clear removes them.
type ConstantPool struct {
	constants []Constant
	index     map[string]uint32
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[string]uint32)}
}

// Add inserts c and returns its index. Adding a constant equal to an
// existing one returns the existing index.
func (p *ConstantPool) Add(c Constant) uint32 {
	if c.Kind == ConstValue && c.Value == nil {
		c.Value = rho.Nil
	}
	if c.Kind == ConstBytes {
		c.Bytes = bytes.Clone(c.Bytes)
	}
	k := c.key()
	if idx, ok := p.index[k]; ok {
		return idx
	}
	idx := uint32(len(p.constants))
	p.constants = append(p.constants, c)
	p.index[k] = idx
	return idx
}

func (p *ConstantPool) AddString(s string) uint32 { return p.Add(Constant{Kind: ConstString, Str: s}) }
func (p *ConstantPool) AddInt(n int64) uint32    { return p.Add(Constant{Kind: ConstInt, Int: n}) }
func (p *ConstantPool) AddBool(b bool) uint32    { return p.Add(Constant{Kind: ConstBool, Bool: b}) }
func (p *ConstantPool) AddURI(u string) uint32   { return p.Add(Constant{Kind: ConstURI, Str: u}) }
func (p *ConstantPool) AddBytes(b []byte) uint32 { return p.Add(Constant{Kind: ConstBytes, Bytes: b}) }
func (p *ConstantPool) AddIdent(s string) uint32 { return p.Add(Constant{Kind: ConstIdent, Str: s}) }

// AddValue inserts a value literal.
func (p *ConstantPool) AddValue(v rho.Value) uint32 {
	return p.Add(Constant{Kind: ConstValue, Value: v})
}

// Get returns the constant at idx.
func (p *ConstantPool) Get(idx int64) (Constant, error) {
	if p == nil || idx < 0 || idx >= int64(len(p.constants)) {
		return Constant{}, errorf(ErrInvalidConstantIndex, "constant index %d out of range (pool size %d)", idx, p.Len())
	}
	return p.constants[idx], nil
}

// Text returns the string payload of a string, URI or identifier constant.
func (p *ConstantPool) Text(idx int64) (string, error) {
	c, err := p.Get(idx)
	if err != nil {
		return "", err
	}
	switch c.Kind {
	case ConstString, ConstURI, ConstIdent:
		return c.Str, nil
	case ConstValue:
		switch v := c.Value.(type) {
		case rho.Str:
			return string(v), nil
		case rho.Name:
			return string(v), nil
		}
	}
	return "", errorf(ErrConstantType, "constant %d is %s, not text", idx, c.Kind)
}

// Len returns the number of constants.
func (p *ConstantPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.constants)
}

// Constants returns a copy of the pool contents in index order.
func (p *ConstantPool) Constants() []Constant {
	out := make([]Constant, len(p.constants))
	copy(out, p.constants)
	return out
}

// Clear removes every constant. Indexes handed out before are invalid.
func (p *ConstantPool) Clear() {
	p.constants = nil
	p.index = make(map[string]uint32)
}

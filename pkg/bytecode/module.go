package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"

	"github.com/chazu/rhovm/pkg/rho"
)

// ModuleVersion is the current module format version.
// Increment when making incompatible changes to the format.
const ModuleVersion uint16 = 1

// ModuleMagic starts every serialized module: "RHBC" (Rholang ByteCode).
var ModuleMagic = []byte{'R', 'H', 'B', 'C'}

const headerLen = 4 + 2 + 8 // magic, version, checksum

var moduleEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	moduleEncMode = em
}

// ProcessCode is the compiled body of one process: a flat instruction
// vector and the label table its branches resolve against.
type ProcessCode struct {
	Name   string         `cbor:"1,keyasint"`
	Code   []Instruction  `cbor:"2,keyasint"`
	Labels map[string]int `cbor:"3,keyasint,omitempty"`
}

// LabelNames returns the labels sorted by target, then name.
func (pc ProcessCode) LabelNames() []string {
	names := make([]string, 0, len(pc.Labels))
	for n := range pc.Labels {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := pc.Labels[names[i]], pc.Labels[names[j]]
		if ti != tj {
			return ti < tj
		}
		return names[i] < names[j]
	})
	return names
}

// Module is a unit of compiled bytecode: one constant pool shared by
// any number of process bodies.
type Module struct {
	Version   uint16
	Pool      *ConstantPool
	Processes []ProcessCode
}

// NewModule creates an empty module with the current version.
func NewModule() *Module {
	return &Module{Version: ModuleVersion, Pool: NewConstantPool()}
}

// Process returns the body with the given name.
func (m *Module) Process(name string) (ProcessCode, bool) {
	for _, pc := range m.Processes {
		if pc.Name == name {
			return pc, true
		}
	}
	return ProcessCode{}, false
}

type wireConstant struct {
	Kind  ConstKind `cbor:"1,keyasint"`
	Str   string    `cbor:"2,keyasint,omitempty"`
	Int   int64     `cbor:"3,keyasint,omitempty"`
	Bool  bool      `cbor:"4,keyasint,omitempty"`
	Bytes []byte    `cbor:"5,keyasint,omitempty"`
	Value []byte    `cbor:"6,keyasint,omitempty"`
}

type wireModule struct {
	Version   uint16         `cbor:"1,keyasint"`
	Constants []wireConstant `cbor:"2,keyasint"`
	Processes []ProcessCode  `cbor:"3,keyasint"`
}

// Marshal encodes the module for storage/transport.
// Format:
//
//	[magic:4] [version:2] [xxh3(payload):8] [payload: CBOR]
func (m *Module) Marshal() ([]byte, error) {
	w := wireModule{Version: m.Version, Processes: m.Processes}
	if m.Pool != nil {
		for i, c := range m.Pool.constants {
			wc := wireConstant{Kind: c.Kind, Str: c.Str, Int: c.Int, Bool: c.Bool, Bytes: c.Bytes}
			if c.Kind == ConstValue {
				data, err := rho.MarshalValue(c.Value)
				if err != nil {
					return nil, &Error{Kind: ErrBadModule, Msg: fmt.Sprintf("constant %d", i), Err: err}
				}
				wc.Value = data
			}
			w.Constants = append(w.Constants, wc)
		}
	}
	payload, err := moduleEncMode.Marshal(w)
	if err != nil {
		return nil, &Error{Kind: ErrBadModule, Msg: "encode module", Err: err}
	}

	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, ModuleMagic...)
	buf = binary.BigEndian.AppendUint16(buf, m.Version)
	buf = binary.BigEndian.AppendUint64(buf, xxh3.Hash(payload))
	buf = append(buf, payload...)
	return buf, nil
}

// UnmarshalModule decodes a module, rejecting bad magic, versions newer
// than ModuleVersion and payloads whose checksum does not match.
func UnmarshalModule(data []byte) (*Module, error) {
	if len(data) < headerLen {
		return nil, errorf(ErrBadModule, "module too short: need at least %d bytes, got %d", headerLen, len(data))
	}
	if !bytes.Equal(data[0:4], ModuleMagic) {
		return nil, errorf(ErrBadModule, "invalid module magic: expected %q, got %q", ModuleMagic, data[0:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version > ModuleVersion {
		return nil, errorf(ErrVersionMismatch, "module version %d is newer than supported version %d", version, ModuleVersion)
	}
	sum := binary.BigEndian.Uint64(data[6:14])
	payload := data[headerLen:]
	if got := xxh3.Hash(payload); got != sum {
		return nil, errorf(ErrChecksumMismatch, "module checksum %016x does not match payload %016x", sum, got)
	}

	var w wireModule
	if err := cbor.Unmarshal(payload, &w); err != nil {
		return nil, &Error{Kind: ErrBadModule, Msg: "decode module", Err: err}
	}
	if w.Version != version {
		return nil, errorf(ErrVersionMismatch, "header version %d disagrees with payload version %d", version, w.Version)
	}

	m := &Module{Version: version, Pool: NewConstantPool(), Processes: w.Processes}
	for i, wc := range w.Constants {
		c := Constant{Kind: wc.Kind, Str: wc.Str, Int: wc.Int, Bool: wc.Bool, Bytes: wc.Bytes}
		if wc.Kind == ConstValue {
			v, err := rho.UnmarshalValue(wc.Value)
			if err != nil {
				return nil, &Error{Kind: ErrBadModule, Msg: fmt.Sprintf("constant %d", i), Err: err}
			}
			c.Value = v
		}
		if idx := m.Pool.Add(c); int(idx) != i {
			return nil, errorf(ErrBadModule, "duplicate constant at index %d (first seen at %d)", i, idx)
		}
	}
	for _, pc := range m.Processes {
		for pcIdx, inst := range pc.Code {
			if !inst.Op.Valid() {
				return nil, errorf(ErrInvalidOpcode, "process %q instruction %d: %s", pc.Name, pcIdx, inst.Op)
			}
		}
	}
	return m, nil
}

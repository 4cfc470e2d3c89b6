package rspace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/armon/go-radix"

	"github.com/chazu/rhovm/pkg/rho"
)

// PathMap is the path-indexed backend. Entries live in a radix tree
// under "{kind}/{name}" so a kind, or a name prefix within a kind, can be
// listed without scanning the whole store. The kind is rendered in
// decimal and never contains '/', so the first '/' always ends it.
// It is not safe for concurrent use.
type PathMap struct {
	tree *radix.Tree
}

var _ RSpace = (*PathMap)(nil)

// NewPathMap creates an empty path-indexed store.
func NewPathMap() *PathMap {
	return &PathMap{tree: radix.New()}
}

// PathKey returns the tree key for (kind, name).
func PathKey(kind rho.Kind, name string) string {
	return kindPrefix(kind) + name
}

func kindPrefix(kind rho.Kind) string {
	return strconv.FormatUint(uint64(kind), 10) + "/"
}

// SplitPathKey inverts PathKey.
func SplitPathKey(key string) (rho.Kind, string, error) {
	tag, name, ok := strings.Cut(key, "/")
	if !ok {
		return 0, "", fmt.Errorf("path key %q: missing kind separator", key)
	}
	k, err := strconv.ParseUint(tag, 10, 8)
	if err != nil {
		return 0, "", fmt.Errorf("path key %q: %w", key, err)
	}
	return rho.Kind(k), name, nil
}

// Len returns the number of stored entries.
func (p *PathMap) Len() int {
	return p.tree.Len()
}

// Names returns, in key order, the names of kind that start with prefix.
func (p *PathMap) Names(kind rho.Kind, prefix string) []string {
	base := kindPrefix(kind)
	var names []string
	p.tree.WalkPrefix(base+prefix, func(key string, _ interface{}) bool {
		names = append(names, key[len(base):])
		return false
	})
	return names
}

func (p *PathMap) lookup(kind rho.Kind, name string) (Entry, bool) {
	v, ok := p.tree.Get(PathKey(kind, name))
	if !ok {
		return nil, false
	}
	return v.(Entry), true
}

func (p *PathMap) Tell(kind rho.Kind, name string, data rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if data == nil {
		data = rho.Nil
	}
	e, ok := p.lookup(kind, name)
	if !ok {
		p.tree.Insert(PathKey(kind, name), ChannelEntry{Queue: []rho.Value{data}})
		return nil
	}
	ch, isChan := e.(ChannelEntry)
	if !isChan {
		return typeMismatch("tell", name, e.Kind(), EntryChannel)
	}
	ch.Queue = append(ch.Queue, data)
	p.tree.Insert(PathKey(kind, name), ch)
	return nil
}

func (p *PathMap) channel(op string, kind rho.Kind, name string) (ChannelEntry, bool, error) {
	if err := CheckName(kind, name); err != nil {
		return ChannelEntry{}, false, err
	}
	e, ok := p.lookup(kind, name)
	if !ok {
		return ChannelEntry{}, false, nil
	}
	ch, isChan := e.(ChannelEntry)
	if !isChan {
		return ChannelEntry{}, false, typeMismatch(op, name, e.Kind(), EntryChannel)
	}
	return ch, true, nil
}

func (p *PathMap) Ask(kind rho.Kind, name string) (rho.Value, bool, error) {
	ch, ok, err := p.channel("ask", kind, name)
	if err != nil || !ok || len(ch.Queue) == 0 {
		return nil, false, err
	}
	front := ch.Queue[0]
	ch.Queue[0] = nil
	ch.Queue = ch.Queue[1:]
	p.tree.Insert(PathKey(kind, name), ch)
	return front, true, nil
}

func (p *PathMap) Peek(kind rho.Kind, name string) (rho.Value, bool, error) {
	ch, ok, err := p.channel("peek", kind, name)
	if err != nil || !ok || len(ch.Queue) == 0 {
		return nil, false, err
	}
	return ch.Queue[0], true, nil
}

func (p *PathMap) RegisterProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if e, ok := p.lookup(kind, name); ok {
		return fmt.Errorf("%w: register process %q: holds a %s", ErrEntryExists, name, e.Kind())
	}
	p.tree.Insert(PathKey(kind, name), ProcessEntry{State: state})
	return nil
}

func (p *PathMap) UpdateProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	e, ok := p.lookup(kind, name)
	if !ok {
		return fmt.Errorf("%w: update process %q", ErrNotFound, name)
	}
	if e.Kind() != EntryProcess {
		return typeMismatch("update process", name, e.Kind(), EntryProcess)
	}
	p.tree.Insert(PathKey(kind, name), ProcessEntry{State: state})
	return nil
}

func (p *PathMap) ProcessState(kind rho.Kind, name string) (rho.ProcessState, bool) {
	e, ok := p.Entry(kind, name)
	if !ok {
		return rho.ProcessState{}, false
	}
	pe, isProc := e.(ProcessEntry)
	return pe.State, isProc
}

func (p *PathMap) SetValue(kind rho.Kind, name string, v rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if v == nil {
		v = rho.Nil
	}
	if e, ok := p.lookup(kind, name); ok {
		return fmt.Errorf("%w: set value %q: holds a %s", ErrEntryExists, name, e.Kind())
	}
	p.tree.Insert(PathKey(kind, name), ValueEntry{Value: v})
	return nil
}

func (p *PathMap) Value(kind rho.Kind, name string) (rho.Value, bool) {
	e, ok := p.Entry(kind, name)
	if !ok {
		return nil, false
	}
	ve, isVal := e.(ValueEntry)
	return ve.Value, isVal
}

func (p *PathMap) Entry(kind rho.Kind, name string) (Entry, bool) {
	if CheckName(kind, name) != nil {
		return nil, false
	}
	e, ok := p.lookup(kind, name)
	if !ok {
		return nil, false
	}
	return cloneEntry(e), true
}

func (p *PathMap) IsSolved(kind rho.Kind, name string) bool {
	return IsSolved(p.Entry(kind, name))
}

func (p *PathMap) Reset() error {
	log.Debugf("pathmap rspace reset (%d entries)", p.tree.Len())
	p.tree = radix.New()
	return nil
}

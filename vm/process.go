package vm

import (
	"maps"
	"slices"
	"sync"

	"github.com/chazu/rhovm/pkg/bytecode"
	"github.com/chazu/rhovm/pkg/rho"
	"github.com/chazu/rhovm/rspace"
)

// EventKind distinguishes the two ProcessEvent outcomes.
type EventKind uint8

const (
	EventValue EventKind = iota + 1
	EventError
)

// ProcessEvent is delivered to a process's handler after it reaches a
// terminal state.
type ProcessEvent struct {
	Kind    EventKind
	Process *Process
	Value   rho.Value
	Err     error
}

// EventHandler receives ProcessEvents. It runs on the executing goroutine.
type EventHandler func(ProcessEvent)

// Process is a unit of execution: immutable code, its constant pool and
// label table, a locals vector and a lifecycle state.
//
// Locals survive re-execution; only the VM's operand stack is cleared.
// A Process implements rho.ProcessHandle, so it can appear in a Par.
type Process struct {
	name   string
	code   []bytecode.Instruction
	pool   *bytecode.ConstantPool
	labels map[string]int
	locals []rho.Value

	mu      sync.Mutex
	state   rho.ProcessState
	vm      *VM
	handler EventHandler
}

var _ rho.ProcessHandle = (*Process)(nil)

// NewProcess creates a process in the Wait state. code and labels are
// copied; the pool is shared and must not change while the process runs.
func NewProcess(name string, code []bytecode.Instruction, pool *bytecode.ConstantPool, labels map[string]int) *Process {
	if pool == nil {
		pool = bytecode.NewConstantPool()
	}
	return &Process{
		name:   name,
		code:   slices.Clone(code),
		pool:   pool,
		labels: maps.Clone(labels),
		state:  rho.StateWait,
	}
}

// NewProcessFromCode builds a process from a module body.
func NewProcessFromCode(pc bytecode.ProcessCode, pool *bytecode.ConstantPool) *Process {
	return NewProcess(pc.Name, pc.Code, pool, pc.Labels)
}

// ProcessesFromModule creates one process per body in m, in module
// order, all sharing m's constant pool.
func ProcessesFromModule(m *bytecode.Module) []*Process {
	procs := make([]*Process, len(m.Processes))
	for i, pc := range m.Processes {
		procs[i] = NewProcessFromCode(pc, m.Pool)
	}
	return procs
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Code returns the instruction sequence. Callers must not modify it.
func (p *Process) Code() []bytecode.Instruction { return p.code }

// Pool returns the constant pool.
func (p *Process) Pool() *bytecode.ConstantPool { return p.pool }

// Label returns the instruction index for a label.
func (p *Process) Label(name string) (int, bool) {
	idx, ok := p.labels[name]
	return idx, ok
}

// Locals returns a copy of the locals vector.
func (p *Process) Locals() []rho.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.locals)
}

// State returns the current lifecycle state.
func (p *Process) State() rho.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MarkReady moves a waiting process to Ready. It reports false if the
// process was not waiting.
func (p *Process) MarkReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Status != rho.StatusWait {
		return false
	}
	p.state = rho.StateReady
	return true
}

// Attach sets the VM used by Execute.
func (p *Process) Attach(vm *VM) {
	p.mu.Lock()
	p.vm = vm
	p.mu.Unlock()
}

// VM returns the attached VM, or nil.
func (p *Process) VM() *VM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vm
}

// OnEvent installs the handler called after each execution.
func (p *Process) OnEvent(h EventHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// Execute runs the process to completion on its attached VM, attaching a
// VM over a private in-memory store first if there is none. The state
// becomes Value(result) or Error(message) and the handler, if any, is
// called afterwards.
func (p *Process) Execute() (rho.Value, error) {
	p.mu.Lock()
	if p.vm == nil {
		p.vm = NewVM(rspace.NewMemory())
	}
	vm := p.vm
	p.state = rho.StateReady
	p.mu.Unlock()

	result, err := vm.execute(p)

	p.mu.Lock()
	if err != nil {
		p.state = rho.ErrorState(err.Error())
	} else {
		p.state = rho.ValueState(result)
	}
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		ev := ProcessEvent{Kind: EventValue, Process: p, Value: result, Err: err}
		if err != nil {
			ev.Kind = EventError
		}
		h(ev)
	}
	return result, err
}

// Run attaches vm and executes the process on it.
func (p *Process) Run(vm *VM) (rho.Value, error) {
	p.Attach(vm)
	return p.Execute()
}

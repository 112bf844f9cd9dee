// Package vm is the library entry point spec.md §6 describes:
// VirtualMachine::new, set_memory, and run, wrapping the interpreter and
// the x86-64 JIT translator behind one API and choosing between them.
package vm

import (
	"fmt"

	"github.com/ubpfvm/ubpfvm/interp"
	"github.com/ubpfvm/ubpfvm/jit"
	"github.com/ubpfvm/ubpfvm/program"
)

// State mirrors the run outcome a caller (CLI or debugger) cares about.
type State int

const (
	StateReady State = iota
	StateHalted
	StateError
)

// VirtualMachine owns one decoded Sequence and lazily compiles it for the
// JIT path the first time Run(jit: true) is requested (spec.md §6(e)).
type VirtualMachine struct {
	seq     *program.Sequence
	interp  *interp.VM
	native  *jit.CompiledProgram
	State   State
	LastErr error
}

// New binds a VirtualMachine to a decoded Sequence (spec.md §6(e)
// `VirtualMachine::new(seq)`).
func New(seq *program.Sequence) *VirtualMachine {
	return &VirtualMachine{
		seq:    seq,
		interp: interp.NewVM(seq),
		State:  StateReady,
	}
}

// Interp exposes the underlying interpreter, for callers (the debug TUI)
// that need direct register/stack access between steps.
func (v *VirtualMachine) Interp() *interp.VM { return v.interp }

// Configure applies stack/instruction-budget/bounds-check settings read
// from config.Config before the first Run (SPEC_FULL.md §4.10).
func (v *VirtualMachine) Configure(maxInstructions uint64, boundsCheck bool, stackSize int) {
	v.interp.MaxInstructions = maxInstructions
	v.interp.BoundsCheck = boundsCheck
	v.interp.SetStackSize(stackSize)
}

// SetMemory installs the guest memory buffer both the interpreter and any
// compiled native code will read r1 as pointing at (spec.md §6(e)
// `set_memory`).
func (v *VirtualMachine) SetMemory(offset int, data []byte) error {
	return v.interp.SetMemory(offset, data)
}

// RegisterHelper installs an interpreter-only helper reachable from `call`
// (SPEC_FULL.md §4.13); the JIT path refuses any sequence using `call`.
func (v *VirtualMachine) RegisterHelper(id int32, fn interp.HelperFunc) {
	v.interp.RegisterHelper(id, fn)
}

// Run executes the bound sequence. When useJIT is true it lazily compiles
// the sequence to native code and runs that instead, falling back
// transparently to the interpreter when the JIT refuses the sequence
// (spec.md §9 "the JIT refuses to emit" / SPEC_FULL.md §4.13 `call`
// handling) or when the compiled run reports the DivZero sentinel, so the
// caller always gets a real VmError rather than a silent wrong answer.
func (v *VirtualMachine) Run(useJIT bool) (int64, error) {
	if !useJIT {
		return v.runInterp()
	}

	if v.native == nil {
		compiled, err := jit.Compile(v.seq)
		if err != nil {
			// Falls back to the interpreter rather than surfacing a
			// translation failure: any sequence the JIT declines to
			// lower is still fully defined by the interpreter.
			return v.runInterp()
		}
		v.native = compiled
	}

	result := v.native.Run(v.interp.Mem)
	if result == jit.DivZeroSentinel {
		return v.runInterp()
	}

	v.State = StateHalted
	return result, nil
}

func (v *VirtualMachine) runInterp() (int64, error) {
	result, err := v.interp.Run()
	if err != nil {
		v.State = StateError
		v.LastErr = err
		return 0, fmt.Errorf("vm: run failed: %w", err)
	}
	v.State = StateHalted
	return result, nil
}

// Reset restores the interpreter to its initial state and drops any
// compiled native code, so the next Run recompiles against current memory.
func (v *VirtualMachine) Reset() {
	v.interp.Reset()
	if v.native != nil {
		_ = v.native.Close()
		v.native = nil
	}
	v.State = StateReady
	v.LastErr = nil
}

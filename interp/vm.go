// Package interp implements the reference interpreter for the BPF bytecode
// (spec.md §4.6): register file, stack, optional guest memory, and the
// dispatch loop that defines the semantic ground truth every opcode must
// match, including the JIT (spec.md §1).
package interp

import (
	"fmt"
	"strings"

	"github.com/ubpfvm/ubpfvm/program"
)

const (
	// DefaultStackSize matches spec.md §4.6's "fixed size (e.g. 4 KiB)".
	DefaultStackSize = 4096

	numRegisters = 11 // r0..r10
	frameReg     = 10
	contextReg   = 1
)

// HelperFunc is a caller-supplied helper, dispatched by the `call` opcode's
// immediate id (SPEC_FULL.md §4.13).
type HelperFunc func(vm *VM, args [5]int64) (int64, error)

// VM holds all interpreter-owned state for a single run (spec.md §5: guest
// register file, stack and memory belong exclusively to one VM instance;
// independent VMs may run concurrently on separate goroutines with no
// coordination required).
type VM struct {
	Regs [numRegisters]int64
	PC   int

	Stack []byte
	Mem   []byte

	BoundsCheck     bool
	MaxInstructions uint64 // 0 means unlimited

	seq     *program.Sequence
	wordIdx *program.WordIndex
	helpers map[int32]HelperFunc

	executed uint64
}

// NewVM constructs a VM bound to seq, with a fresh DefaultStackSize stack.
// pc is tracked in word units (matching jump-offset semantics, spec.md §9)
// rather than logical-instruction-list indices, since lddw occupies two
// words but one list entry.
func NewVM(seq *program.Sequence) *VM {
	vm := &VM{
		Stack:   make([]byte, DefaultStackSize),
		seq:     seq,
		wordIdx: seq.BuildWordIndex(),
		helpers: make(map[int32]HelperFunc),
	}
	vm.Reset()
	return vm
}

// Reset restores pc, registers and the stack pointer to their initial state
// (spec.md §4.6 "Reset"): r1 points at guest memory, r10 points just past
// the end of the stack.
func (vm *VM) Reset() {
	for i := range vm.Regs {
		vm.Regs[i] = 0
	}
	vm.PC = 0
	vm.executed = 0
	if vm.Mem != nil {
		vm.Regs[contextReg] = memoryBaseSentinel
	}
	vm.Regs[frameReg] = stackBaseSentinel + int64(len(vm.Stack))
}

// SetStackSize resizes the guest stack and resets the VM so the frame
// pointer (r10) reflects the new size (SPEC_FULL.md §4.10 "stack_size").
// A non-positive n is ignored, leaving the current stack untouched.
func (vm *VM) SetStackSize(n int) {
	if n <= 0 {
		return
	}
	vm.Stack = make([]byte, n)
	vm.Reset()
}

// SetMemory copies data into the guest memory buffer the VM's r1 points at,
// starting at offset and growing the buffer when offset+len(data) exceeds
// its current length; only a negative offset is rejected (SPEC_FULL.md §10).
func (vm *VM) SetMemory(offset int, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("negative memory offset %d", offset)
	}
	need := offset + len(data)
	if need > len(vm.Mem) {
		grown := make([]byte, need)
		copy(grown, vm.Mem)
		vm.Mem = grown
	}
	copy(vm.Mem[offset:], data)
	vm.Regs[contextReg] = memoryBaseSentinel
	return nil
}

// RegisterHelper installs a helper reachable from `call <id>` (SPEC_FULL.md §4.13).
func (vm *VM) RegisterHelper(id int32, fn HelperFunc) {
	vm.helpers[id] = fn
}

// DumpRegisters pretty-prints r0..r10 and pc, used by the CLI's error path
// and the debug TUI (SPEC_FULL.md §10).
func (vm *VM) DumpRegisters() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pc=%d\n", vm.PC)
	for i, v := range vm.Regs {
		fmt.Fprintf(&sb, "r%-2d = 0x%016x (%d)\n", i, uint64(v), v)
	}
	return sb.String()
}

// memoryBaseSentinel and stackBaseSentinel are synthetic host-independent
// "addresses" the interpreter uses to identify which backing buffer a
// register-relative load/store targets. They are never real pointers: the
// interpreter performs bounds-checked slice indexing, it never dereferences
// raw memory as the JIT's native code does.
const (
	memoryBaseSentinel = 1 << 40
	stackBaseSentinel  = 1 << 41
)

//go:build amd64

package jit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ubpfvm/ubpfvm/program"
)

// CompiledProgram owns an mmap'd, executable page holding translated native
// code. It must be released with Close once the caller is done invoking it
// (spec.md §4.8 "Execution").
type CompiledProgram struct {
	code []byte
}

// Compile translates seq and maps the result into an executable page. The
// returned CompiledProgram's Run method repeatedly invokes the same native
// code, so translating once and running many times (e.g. spec.md's
// benchmark-style callers) avoids re-paying the mmap cost per call.
func Compile(seq *program.Sequence) (*CompiledProgram, error) {
	native, err := Translate(seq)
	if err != nil {
		return nil, err
	}

	page, err := unix.Mmap(-1, 0, len(native), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap executable page: %w", err)
	}
	copy(page, native)
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(page)
		return nil, fmt.Errorf("jit: mprotect executable page: %w", err)
	}

	return &CompiledProgram{code: page}, nil
}

// Run invokes the compiled native code with the guest memory buffer, per
// the ABI emitPrologue assumes: rdi holds a pointer to mem (or nil if the
// program never dereferences r1), and rax holds the guest's r0 on return.
// A return value equal to the JIT's DivZero sentinel signals the caller
// should re-run the sequence through the interpreter to recover a proper
// VmError (SPEC_FULL.md §9 DivZero policy (a)).
func (c *CompiledProgram) Run(mem []byte) int64 {
	// A Go func value is itself a pointer to a funcval struct whose first
	// word is the entry PC. Building that shape by hand over the mapped
	// page's address turns it into a callable value without cgo, at the
	// cost of bypassing the type system entirely.
	codePtr := uintptr(unsafe.Pointer(&c.code[0]))
	fn := *(*func(uintptr) int64)(unsafe.Pointer(&codePtr))

	var memPtr uintptr
	if len(mem) > 0 {
		memPtr = uintptr(unsafe.Pointer(&mem[0]))
	}
	return fn(memPtr)
}

// Close unmaps the native code page.
func (c *CompiledProgram) Close() error {
	return unix.Munmap(c.code)
}

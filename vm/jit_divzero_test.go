//go:build amd64

package vm

import (
	"testing"

	"github.com/ubpfvm/ubpfvm/asm"
)

// A divisor whose low 32 bits are zero but whose full 64-bit value is
// nonzero must still trap as DivZero on the 32-bit path under the JIT, not
// fall through to a faulting native divide (the 32-bit divide only ever
// looks at those low 32 bits).
func TestJITDiv32ByLowZeroDivisorTrapsDivZero(t *testing.T) {
	seq, err := asm.Assemble("lddw r1, 0x100000000\ndiv32 r0, r1\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	machine := New(seq)
	if _, err := machine.Run(true); err == nil {
		t.Error("expected a DivZero error for a divisor with zero low 32 bits, got nil")
	}
	if machine.State != StateError {
		t.Errorf("expected StateError, got %v", machine.State)
	}
}

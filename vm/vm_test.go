package vm

import (
	"testing"

	"github.com/ubpfvm/ubpfvm/asm"
)

func TestRunInterpReturnsR0(t *testing.T) {
	seq, err := asm.Assemble("mov64 r0, 7\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	machine := New(seq)
	result, err := machine.Run(false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != 7 {
		t.Errorf("expected r0=7, got %d", result)
	}
	if machine.State != StateHalted {
		t.Errorf("expected StateHalted, got %v", machine.State)
	}
}

func TestRunJumpsPastLddw(t *testing.T) {
	// ja past a two-word lddw, matching spec.md's word-pc jump semantics
	// (SPEC_FULL.md §9): skip+1, lddw(2 words), mov64, exit.
	seq, err := asm.Assemble(`
ja +2
lddw r1, 0x1122334455
mov64 r0, 9
exit
`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	machine := New(seq)
	result, err := machine.Run(false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != 9 {
		t.Errorf("expected r0=9 (jump must land past the 2-word lddw), got %d", result)
	}
}

func TestDivByZeroReturnsVmError(t *testing.T) {
	seq, err := asm.Assemble("mov64 r1, 0\ndiv64 r0, r1\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	machine := New(seq)
	if _, err := machine.Run(false); err == nil {
		t.Error("expected a DivZero error, got nil")
	}
	if machine.State != StateError {
		t.Errorf("expected StateError, got %v", machine.State)
	}
}

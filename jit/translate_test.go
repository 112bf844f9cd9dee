package jit

import (
	"errors"
	"testing"

	"github.com/ubpfvm/ubpfvm/asm"
)

func mustAssembleSeq(t *testing.T, src string) *[]byte {
	t.Helper()
	seq, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code, err := Translate(seq)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return &code
}

func TestTranslateSimpleProgramProducesCode(t *testing.T) {
	code := mustAssembleSeq(t, "mov64 r0, 2\nadd64 r0, 3\nexit\n")
	if len(*code) == 0 {
		t.Fatal("Translate produced no machine code")
	}
}

func TestTranslateRejectsCall(t *testing.T) {
	seq, err := asm.Assemble("call 1\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	_, err = Translate(seq)
	if !errors.Is(err, ErrUnsupportedOpcode) {
		t.Fatalf("Translate(call) error = %v, want ErrUnsupportedOpcode", err)
	}
}

func TestTranslateJumpPastLddw(t *testing.T) {
	// lddw followed by a jump crossing it exercises jumpLogicalTarget's
	// word-pc math independent of the interpreter.
	seq, err := asm.Assemble("ja +2\nlddw r1, 0x1122334455\nmov64 r0, 9\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code, err := Translate(seq)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("Translate produced no machine code")
	}
}

func TestTranslateJumpBackwardProducesConsistentRelocation(t *testing.T) {
	src := `
mov64 r1, 3
ja +1
exit
sub64 r1, 1
jne r1, 0, -2
ja -4
`
	seq, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code, err := Translate(seq)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("Translate produced no machine code")
	}
}

func TestTranslateDivZeroTrampolineReachable(t *testing.T) {
	code := mustAssembleSeq(t, "mov64 r1, 0\ndiv64 r0, r1\nexit\n")
	if len(*code) == 0 {
		t.Fatal("Translate produced no machine code")
	}
}

func TestTranslateEndianOps(t *testing.T) {
	code := mustAssembleSeq(t, "mov64 r0, 0x1122\nbe16 r0\nle32 r0\nexit\n")
	if len(*code) == 0 {
		t.Fatal("Translate produced no machine code")
	}
}

package disasm

import (
	"strings"
	"testing"

	"github.com/ubpfvm/ubpfvm/asm"
)

func TestFormatRoundTripsThroughAssemble(t *testing.T) {
	src := "mov64 r0, 7\nadd64 r0, r1\nexit\n"
	seq, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	out := Format(seq)
	reseq, err := asm.Assemble(out)
	if err != nil {
		t.Fatalf("re-assembling formatted output: %v\noutput was:\n%s", err, out)
	}
	if !seq.Equal(reseq) {
		t.Errorf("round trip mismatch:\noriginal: %+v\nformatted: %q\nreparsed: %+v", seq.All(), out, reseq.All())
	}
}

func TestFormatRoundTripsNegativeImmediates(t *testing.T) {
	src := "mov32 r0, -1\njeq r0, -1, +1\nstw [r1+0], -1\nexit\nexit\n"
	seq, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	out := Format(seq)
	reseq, err := asm.Assemble(out)
	if err != nil {
		t.Fatalf("re-assembling formatted output: %v\noutput was:\n%s", err, out)
	}
	if !seq.Equal(reseq) {
		t.Errorf("round trip mismatch:\noriginal: %+v\nformatted: %q\nreparsed: %+v", seq.All(), out, reseq.All())
	}
}

func TestFormatLddw(t *testing.T) {
	seq, err := asm.Assemble("lddw r2, 0x1122334455667788\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out := Format(seq)
	if !strings.Contains(out, "lddw r2, 0x1122334455667788") {
		t.Errorf("formatted output missing lddw line: %q", out)
	}
}

func TestFormatMemoryOperands(t *testing.T) {
	seq, err := asm.Assemble("stxw [r1+8], r2\nldxh r3, [r1-4]\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out := Format(seq)
	if !strings.Contains(out, "[r1+8]") {
		t.Errorf("missing store operand in %q", out)
	}
	if !strings.Contains(out, "[r1-4]") {
		t.Errorf("missing load operand in %q", out)
	}
}

func TestFormatJump(t *testing.T) {
	seq, err := asm.Assemble("jeq r0, r1, +2\nmov64 r0, 1\nexit\nexit\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out := Format(seq)
	if !strings.Contains(out, "jeq r0, r1, +2") {
		t.Errorf("missing jump line in %q", out)
	}
}

package program

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := NewSequence([]Instruction{
		{Op: 0x07, Regs: 0x01, Offset: 0, Imm: 7},
		{Op: lddwOp, Regs: 0x02, Offset: 0, Imm: 0x1122334455667788},
		{Op: 0x05, Regs: 0, Offset: -5, Imm: 0},
		{Op: 0x95},
	})

	encoded := Encode(orig)
	if len(encoded)%8 != 0 {
		t.Fatalf("encoded length %d is not a multiple of 8", len(encoded))
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !orig.Equal(decoded) {
		t.Errorf("round trip mismatch:\norig:    %+v\ndecoded: %+v", orig.All(), decoded.All())
	}
}

func TestEncodeLddwSpansTwoWords(t *testing.T) {
	seq := NewSequence([]Instruction{{Op: lddwOp, Imm: 0x1122334455667788}})
	encoded := Encode(seq)
	if len(encoded) != 16 {
		t.Fatalf("expected 16 bytes for one lddw, got %d", len(encoded))
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrBadLength {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func TestDecodeRejectsTruncatedLDDW(t *testing.T) {
	word := make([]byte, 8)
	word[0] = lddwOp
	if _, err := Decode(word); err != ErrTruncatedLDDW {
		t.Errorf("expected ErrTruncatedLDDW, got %v", err)
	}
}

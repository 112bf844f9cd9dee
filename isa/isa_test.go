package isa

import "testing"

func TestOpcodeBitfieldRoundTrip(t *testing.T) {
	op := MakeMemOp(ClassLDX, ModeMem, SizeH)
	if OpClass(op) != ClassLDX {
		t.Errorf("OpClass = %v, want ClassLDX", OpClass(op))
	}
	if OpMode(op) != ModeMem {
		t.Errorf("OpMode = %v, want ModeMem", OpMode(op))
	}
	if OpSize(op) != SizeH {
		t.Errorf("OpSize = %v, want SizeH", OpSize(op))
	}
}

func TestAluOpcodeRoundTrip(t *testing.T) {
	op := MakeAluOp(ClassALU64, SrcReg, AluXor)
	if OpClass(op) != ClassALU64 {
		t.Errorf("OpClass = %v, want ClassALU64", OpClass(op))
	}
	if OpSource(op) != SrcReg {
		t.Errorf("OpSource = %v, want SrcReg", OpSource(op))
	}
	if OpCode(op) != AluXor {
		t.Errorf("OpCode = 0x%x, want AluXor", OpCode(op))
	}
}

func TestAluNameRoundTrip(t *testing.T) {
	for name, code := range aluNames {
		got, ok := AluName(code)
		if !ok || got != name {
			t.Errorf("AluName(0x%x) = %q, %v; want %q, true", code, got, ok, name)
		}
		backCode, ok := AluCode(name)
		if !ok || backCode != code {
			t.Errorf("AluCode(%q) = 0x%x, %v; want 0x%x, true", name, backCode, ok, code)
		}
	}
}

func TestJmpNameRoundTrip(t *testing.T) {
	for name, code := range jmpNames {
		got, ok := JmpName(code)
		if !ok || got != name {
			t.Errorf("JmpName(0x%x) = %q, %v; want %q, true", code, got, ok, name)
		}
	}
}

func TestMemSizeRoundTrip(t *testing.T) {
	cases := []struct {
		suffix string
		size   Size
		bytes  int
	}{
		{"w", SizeW, 4},
		{"h", SizeH, 2},
		{"b", SizeB, 1},
		{"dw", SizeDW, 8},
	}
	for _, c := range cases {
		sz, ok := MemSize(c.suffix)
		if !ok || sz != c.size {
			t.Errorf("MemSize(%q) = %v, %v; want %v, true", c.suffix, sz, ok, c.size)
		}
		name, ok := MemSizeName(c.size)
		if !ok || name != c.suffix {
			t.Errorf("MemSizeName(%v) = %q, %v; want %q, true", c.size, name, ok, c.suffix)
		}
		if SizeBytes(c.size) != c.bytes {
			t.Errorf("SizeBytes(%v) = %d, want %d", c.size, SizeBytes(c.size), c.bytes)
		}
	}
}

func TestUnknownNamesReportFalse(t *testing.T) {
	if _, ok := AluCode("nope"); ok {
		t.Error("AluCode(\"nope\") should report false")
	}
	if _, ok := JmpCode("nope"); ok {
		t.Error("JmpCode(\"nope\") should report false")
	}
	if _, ok := MemSize("nope"); ok {
		t.Error("MemSize(\"nope\") should report false")
	}
}

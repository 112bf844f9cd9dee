package jit

import "testing"

func TestEmitPushPopOpcodes(t *testing.T) {
	e := NewEmitter()
	e.EmitPush(RBX)
	e.EmitPush(R13) // needs REX.B since R13 >= 8
	e.EmitPop(RBX)

	buf := e.Bytes()
	if buf[0] != 0x50+RBX {
		t.Errorf("push rbx opcode = 0x%02x, want 0x%02x", buf[0], 0x50+RBX)
	}
	// push r13: REX.B (0x41) then 0x50 + (13 & 7)
	if buf[1] != 0x41 || buf[2] != 0x50+(R13&7) {
		t.Errorf("push r13 bytes = % x, want 41 %02x", buf[1:3], 0x50+(R13&7))
	}
}

func TestEmitLoadImmProducesMovabs(t *testing.T) {
	e := NewEmitter()
	e.EmitLoadImm(RAX, 0x1122334455667788)
	buf := e.Bytes()
	// REX.W + 0xB8+reg + 8-byte immediate = 10 bytes total for RAX.
	if len(buf) != 10 {
		t.Fatalf("EmitLoadImm(RAX, ...) produced %d bytes, want 10", len(buf))
	}
	if buf[0]&0x48 != 0x48 {
		t.Errorf("missing REX.W prefix: first byte 0x%02x", buf[0])
	}
}

func TestEmitJmpRecordsRelocation(t *testing.T) {
	e := NewEmitter()
	e.EmitJmp(TargetPCExit)
	relos := e.Relocations()
	if len(relos) != 1 {
		t.Fatalf("len(Relocations()) = %d, want 1", len(relos))
	}
	if relos[0].TargetPC != TargetPCExit {
		t.Errorf("TargetPC = %d, want TargetPCExit", relos[0].TargetPC)
	}
	if len(e.Bytes()) != 5 {
		t.Fatalf("near jmp should be 5 bytes (opcode + rel32), got %d", len(e.Bytes()))
	}
}

func TestPatchWritesPCRelativeDistance(t *testing.T) {
	e := NewEmitter()
	e.EmitJmp(TargetPCExit)
	relos := e.Relocations()
	e.Patch(relos[0].ByteOffset, 100)

	buf := e.Bytes()
	got := int32(uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16 | uint32(buf[4])<<24)
	want := int32(100 - relos[0].ByteOffset - 4)
	if got != want {
		t.Errorf("patched rel32 = %d, want %d", got, want)
	}
}

func TestEmitAluImm32EncodesGroup1(t *testing.T) {
	e := NewEmitter()
	e.EmitAluImm32(true, 5, RSP, 512) // sub rsp, 512
	if len(e.Bytes()) == 0 {
		t.Fatal("EmitAluImm32 produced no bytes")
	}
}

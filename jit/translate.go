package jit

import (
	"errors"
	"fmt"

	"github.com/ubpfvm/ubpfvm/isa"
	"github.com/ubpfvm/ubpfvm/program"
)

// ErrUnsupportedOpcode is returned by Translate for any sequence the JIT
// declines to lower natively. `call` is refused rather than bridged into
// the Go runtime (SPEC_FULL.md §4.13); an unknown opcode is refused
// per spec.md §9 "the JIT refuses to emit".
var ErrUnsupportedOpcode = errors.New("jit: unsupported opcode")

// regMap is the guest r0..r10 to host-register mapping of spec.md §4.8.
var regMap = [11]int{RAX, RDI, RSI, RDX, R9, R8, RBX, R13, R14, R15, RBP}

// stackSize matches interp.DefaultStackSize so a program using up to a full
// guest stack behaves identically under interpretation and native execution.
const stackSize = 4096

// divZeroSentinel is the result the JIT returns when it hits a DivZero
// condition native code cannot unwind out of as a Go error (SPEC_FULL.md §9
// policy (a)); the vm package's Run(jit: true) detects it and re-runs the
// program through the interpreter to recover the real VmError.
const divZeroSentinel = int64(-1)

// DivZeroSentinel is the value Run returns when the compiled program hit a
// division/modulo by zero; callers should re-run through the interpreter to
// obtain a proper VmError (SPEC_FULL.md §9 DivZero policy (a)).
const DivZeroSentinel = divZeroSentinel

// calleeSaved lists the host registers the prologue/epilogue preserve,
// pushed/popped in this order (spec.md §4.8).
var calleeSaved = []int{RBX, R13, R14, R15}

// Translator lowers a decoded Sequence into x86-64 machine code.
type Translator struct {
	e               *Emitter
	seq             *program.Sequence
	wordIdx         *program.WordIndex
	pcLocations     []int
	exitLocation    int
	divZeroLocation int
}

// jumpLogicalTarget converts a jump's word-relative Offset into the logical
// instruction index t.pcLocations is keyed by. fromIdx is the jump's own
// logical index; every jump occupies exactly one word, so the word-pc of the
// instruction after it is wordIdx.StartWord(fromIdx)+1 (spec.md §9).
func (t *Translator) jumpLogicalTarget(fromIdx int, offset int16) (int, error) {
	nextWord := t.wordIdx.StartWord(fromIdx) + 1
	targetWord := nextWord + int(offset)
	idx, ok := t.wordIdx.IndexAtWord(targetWord)
	if !ok {
		return 0, fmt.Errorf("%w: jump target word %d is not an instruction boundary", ErrUnsupportedOpcode, targetWord)
	}
	return idx, nil
}

// Translate is the library entry point `jit_translate(seq) -> native_bytes`
// (spec.md §6). It is a two-pass process: emit with relocation placeholders,
// then patch every branch once all instruction offsets are known
// (spec.md §4.8, §9 "Cyclic or back-referencing control flow").
func Translate(seq *program.Sequence) ([]byte, error) {
	insns := seq.All()
	for _, insn := range insns {
		if insn.Dst() > 10 || insn.Src() > 10 {
			return nil, fmt.Errorf("%w: register out of r0..r10 range", ErrUnsupportedOpcode)
		}
		if isa.OpClass(insn.Op) == isa.ClassJMP && isa.OpCode(insn.Op) == isa.JmpCall {
			return nil, fmt.Errorf("%w: call", ErrUnsupportedOpcode)
		}
	}

	t := &Translator{e: NewEmitter(), seq: seq, wordIdx: seq.BuildWordIndex(), pcLocations: make([]int, len(insns))}
	t.emitPrologue()

	i := 0
	for i < len(insns) {
		t.pcLocations[i] = t.e.Offset()
		insn := insns[i]

		if insn.Op == isa.LDDW {
			// lddw is one logical step: the decoder/assembler already merged
			// its two wire slots into this single record (the second word is
			// accounted for by wordIdx), so the translator advances its
			// logical index by one, like the interpreter's word-pc advance of 2.
			t.e.EmitLoadImm(t.reg(insn.Dst()), insn.Imm)
			i++
			continue
		}

		last := i == len(insns)-1
		if err := t.emitOne(insn, i, last); err != nil {
			return nil, err
		}
		i++
	}

	t.exitLocation = t.e.Offset()
	t.emitEpilogue()
	t.emitDivZeroTrampoline()

	for _, r := range t.e.Relocations() {
		target := t.exitLocation
		switch {
		case r.TargetPC == TargetPCExit:
			target = t.exitLocation
		case r.TargetPC == TargetPCDivZero:
			target = t.divZeroLocation
		default:
			target = t.pcLocations[r.TargetPC]
		}
		t.e.Patch(r.ByteOffset, target)
	}

	return t.e.Bytes(), nil
}

func (t *Translator) reg(guest uint8) int { return regMap[guest] }

// emitPrologue matches spec.md §4.8: push RBP, move RSP into the mapped
// r10 slot's register (RBP itself, since r10 maps to RBP), reserve stack
// space, push callee-saved registers, and move the first argument (the
// guest memory pointer) into r1's mapped register if it isn't already RDI.
func (t *Translator) emitPrologue() {
	t.e.EmitPush(RBP)
	t.e.EmitMovRegReg(RBP, RSP)
	t.e.EmitAluImm32(true, 5 /* sub */, RSP, stackSize)
	for _, r := range calleeSaved {
		t.e.EmitPush(r)
	}
	// r1 (guest context/memory pointer) already arrives in RDI per the Go
	// call shim (exec_amd64.go); r1 maps to RDI, so with the current register
	// map the guarded move below emits nothing and only comes into play if
	// regMap changes (spec.md §4.8).
	if regMap[1] != RDI {
		t.e.EmitMovRegReg(regMap[1], RDI)
	}
}

func (t *Translator) emitEpilogue() {
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		t.e.EmitPop(calleeSaved[i])
	}
	t.e.emit8(0xc9) // leave
	t.e.emit8(0xc3) // ret
}

// emitDivZeroTrampoline implements the chosen DivZero JIT policy
// (SPEC_FULL.md §9 policy (a)): load the sentinel return value into rax and
// jump straight to the epilogue, rather than unwinding through Go error
// machinery the native code has no way to construct.
func (t *Translator) emitDivZeroTrampoline() {
	t.divZeroLocation = t.e.Offset()
	t.e.EmitLoadImm(RAX, divZeroSentinel)
	t.e.EmitJmp(TargetPCExit)
}

// jccCond maps a jump mnemonic's condition nibble to the low nibble of the
// 0x0f 0x8x Jcc opcode (spec.md §4.8's condition-code table). jset has no
// single native flag so it is synthesized with a preceding `test`.
var jccCond = map[uint8]byte{
	isa.JmpJEQ:  0x4, // je/jz
	isa.JmpJNE:  0x5, // jne/jnz
	isa.JmpJSET: 0x5, // jnz, after `test dst, src`
	isa.JmpJGT:  0x7, // ja
	isa.JmpJGE:  0x3, // jae
	isa.JmpJLT:  0x2, // jb
	isa.JmpJLE:  0x6, // jbe
	isa.JmpJSGT: 0xf, // jg
	isa.JmpJSGE: 0xd, // jge
	isa.JmpJSLT: 0xc, // jl
	isa.JmpJSLE: 0xe, // jle
}

// emitOne lowers a single non-lddw instruction at logical index idx. last
// is unused for now (exit already has its own dedicated epilogue jump) but
// is threaded through for symmetry with the interpreter's per-step shape.
func (t *Translator) emitOne(insn program.Instruction, idx int, last bool) error {
	class := isa.OpClass(insn.Op)
	dst := t.reg(insn.Dst())

	switch class {
	case isa.ClassALU, isa.ClassALU64:
		return t.emitAlu(insn, class == isa.ClassALU)
	case isa.ClassJMP:
		return t.emitJmp(insn, idx)
	case isa.ClassLD:
		return t.emitLoadAbsInd(insn)
	case isa.ClassLDX:
		off := int32(insn.Offset)
		t.e.EmitLoad(isa.SizeBytes(isa.OpSize(insn.Op))*8, dst, t.reg(insn.Src()), off)
		return nil
	case isa.ClassST:
		off := int32(insn.Offset)
		t.e.EmitStoreImm32(isa.SizeBytes(isa.OpSize(insn.Op))*8, dst, off, int32(insn.Imm))
		return nil
	case isa.ClassSTX:
		off := int32(insn.Offset)
		t.e.EmitStore(isa.SizeBytes(isa.OpSize(insn.Op))*8, dst, off, t.reg(insn.Src()))
		return nil
	default:
		return fmt.Errorf("%w: class 0x%x", ErrUnsupportedOpcode, class)
	}
}

// loadOperand materializes the second ALU/JMP operand: src register or
// sign-extended immediate, moved into the scratch register RCX so the
// caller never has to special-case imm vs reg forms.
func (t *Translator) loadOperand(insn program.Instruction) {
	if isa.OpSource(insn.Op) == isa.SrcReg {
		t.e.EmitMovRegReg(RCX, t.reg(insn.Src()))
		return
	}
	t.e.EmitLoadImm(RCX, insn.Imm)
}

func (t *Translator) emitAlu(insn program.Instruction, is32 bool) error {
	code := isa.OpCode(insn.Op)
	dst := t.reg(insn.Dst())
	w := !is32

	if code == isa.AluNeg {
		t.e.EmitGroup3(w, 3, dst)
		if is32 {
			t.e.EmitMovReg32(dst, dst)
		}
		return nil
	}
	if code == isa.AluEnd {
		return t.emitEndian(insn, dst)
	}

	switch code {
	case isa.AluAdd:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x01, RCX, dst)
	case isa.AluSub:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x29, RCX, dst)
	case isa.AluOr:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x09, RCX, dst)
	case isa.AluAnd:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x21, RCX, dst)
	case isa.AluXor:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x31, RCX, dst)
	case isa.AluMov:
		t.loadOperand(insn)
		t.e.EmitAlu(w, 0x89, RCX, dst)
	case isa.AluMul:
		t.loadOperand(insn)
		t.e.EmitImul(w, dst, RCX)
	case isa.AluDiv, isa.AluMod:
		return t.emitDivMod(insn, is32, code == isa.AluMod)
	case isa.AluLsh:
		return t.emitShift(insn, w, 4, dst)
	case isa.AluRsh:
		return t.emitShift(insn, w, 5, dst)
	case isa.AluArsh:
		return t.emitShift(insn, w, 7, dst)
	default:
		return fmt.Errorf("%w: ALU op nibble 0x%x", ErrUnsupportedOpcode, code)
	}
	if is32 {
		t.e.EmitMovReg32(dst, dst)
	}
	return nil
}

// EmitAlu picks the 32- or 64-bit register-form ALU opcode; the teacher-
// style two-argument wrapper keeps emitAlu's switch above uniform whether
// the instruction came from an ALU or ALU64 opcode.
func (e *Emitter) EmitAlu(w bool, opcode byte, src, dst int) {
	if w {
		e.EmitAlu64(opcode, src, dst)
		return
	}
	e.EmitAlu32(opcode, src, dst)
}

// emitShift lowers lsh/rsh/arsh. The shift amount is always moved through
// CL: a constant count still round-trips correctly since x86 masks the
// count to 5/6 bits in hardware, matching the interpreter's `&31`/`&63`.
func (t *Translator) emitShift(insn program.Instruction, w bool, subop, dst int) error {
	t.loadOperand(insn)
	t.e.EmitShiftCL(w, subop, dst)
	if !w {
		t.e.EmitMovReg32(dst, dst)
	}
	return nil
}

// emitDivMod lowers div/mod following spec.md §9's chosen convention: 32-bit
// is unsigned u32, 64-bit is signed i64. rax/rdx are guest r0/r3 (see
// regMap) and must survive the native div instruction's clobber, so their
// values are saved to the native stack and restored before the final move
// into dst — which may itself be rax or rdx.
func (t *Translator) emitDivMod(insn program.Instruction, is32, mod bool) error {
	dst := t.reg(insn.Dst())
	t.loadOperand(insn) // divisor now in rcx

	// Width must match the divide below: interp's 32-bit divide (interp/exec.go)
	// treats a divisor as zero based on its low 32 bits alone, so a 64-bit test
	// here would miss a case like 0x100000000 and fall through to a faulting
	// div ecx.
	t.e.EmitTestRegReg(!is32, RCX, RCX)
	t.e.EmitJcc(jccCond[isa.JmpJEQ], TargetPCDivZero)

	t.e.EmitPush(RAX)
	t.e.EmitPush(RDX)
	t.e.EmitMovRegReg(RAX, dst)
	if is32 {
		t.e.EmitAlu32(0x31, RDX, RDX) // xor edx, edx
		t.e.EmitGroup3(false, 6, RCX) // div ecx (unsigned)
	} else {
		t.e.EmitCDQorCQO(true)        // cqo
		t.e.EmitGroup3(true, 7, RCX) // idiv rcx (signed)
	}
	if mod {
		t.e.EmitMovRegReg(RCX, RDX)
	} else {
		t.e.EmitMovRegReg(RCX, RAX)
	}
	t.e.EmitPop(RDX)
	t.e.EmitPop(RAX)
	t.e.EmitMovRegReg(dst, RCX)
	if is32 {
		t.e.EmitMovReg32(dst, dst)
	}
	return nil
}

// emitEndian implements the le/le/be Open Question resolution of
// SPEC_FULL.md §9 natively: be* performs a real byte-swap, le* is a pure
// width mask on this little-endian host.
func (t *Translator) emitEndian(insn program.Instruction, dst int) error {
	toBE := isa.OpSource(insn.Op) == isa.SrcReg
	switch insn.Imm {
	case 16:
		if toBE {
			t.e.EmitRotateImm16(dst, 8)
		}
		t.e.EmitMovzxReg16(dst)
	case 32:
		if toBE {
			t.e.EmitBswap(false, dst)
		}
		t.e.EmitMovReg32(dst, dst)
	case 64:
		if toBE {
			t.e.EmitBswap(true, dst)
		}
	default:
		return fmt.Errorf("%w: endian width %d", ErrUnsupportedOpcode, insn.Imm)
	}
	return nil
}

func (t *Translator) emitJmp(insn program.Instruction, idx int) error {
	code := isa.OpCode(insn.Op)

	switch code {
	case isa.JmpExit:
		t.e.EmitJmp(TargetPCExit)
		return nil
	case isa.JmpJA:
		target, err := t.jumpLogicalTarget(idx, insn.Offset)
		if err != nil {
			return err
		}
		t.e.EmitJmp(target)
		return nil
	}

	dst := t.reg(insn.Dst())
	target, err := t.jumpLogicalTarget(idx, insn.Offset)
	if err != nil {
		return err
	}

	isReg := isa.OpSource(insn.Op) == isa.SrcReg
	if code == isa.JmpJSET {
		if isReg {
			t.e.EmitTestRegReg(true, dst, t.reg(insn.Src()))
		} else {
			t.e.EmitLoadImm(RCX, insn.Imm)
			t.e.EmitTestRegReg(true, dst, RCX)
		}
	} else if isReg {
		t.e.EmitCmpRegReg(true, t.reg(insn.Src()), dst)
	} else {
		t.e.EmitCmpImm32(true, dst, int32(insn.Imm))
	}
	cond, ok := jccCond[code]
	if !ok {
		return fmt.Errorf("%w: jump condition nibble 0x%x", ErrUnsupportedOpcode, code)
	}
	t.e.EmitJcc(cond, target)
	return nil
}

// emitLoadAbsInd lowers the classic BPF packet-load forms LoadAbs/LoadInd,
// always relative to r1's mapped register (the guest memory pointer) and
// always targeting r0 (spec.md §4.3).
func (t *Translator) emitLoadAbsInd(insn program.Instruction) error {
	base := t.reg(1)
	sizeBits := isa.SizeBytes(isa.OpSize(insn.Op)) * 8
	if isa.OpMode(insn.Op) == isa.ModeInd {
		t.e.EmitMovRegReg(RCX, base)
		t.e.EmitAlu64(0x01, t.reg(insn.Dst()), RCX) // add rcx, dst
		t.e.EmitLoad(sizeBits, RAX, RCX, int32(insn.Imm))
		return nil
	}
	t.e.EmitLoad(sizeBits, RAX, base, int32(insn.Imm))
	return nil
}

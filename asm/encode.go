package asm

import (
	"strings"

	"github.com/ubpfvm/ubpfvm/isa"
	"github.com/ubpfvm/ubpfvm/program"
)

// Assemble is the library entry point `parse_asm(text) -> InstructionSequence`
// of spec.md §6: it parses the grammar and immediately encodes every
// instruction into its canonical record, so a caller never sees the
// intermediate ParsedInstruction form.
func Assemble(src string) (*program.Sequence, error) {
	parsed, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return EncodeAll(parsed)
}

// EncodeAll runs the categorizing encoder (spec.md §4.3) over every parsed
// instruction, producing one Sequence.
func EncodeAll(parsed []ParsedInstruction) (*program.Sequence, error) {
	seq := &program.Sequence{}
	for _, p := range parsed {
		insns, err := encodeOne(p)
		if err != nil {
			return nil, err
		}
		for _, insn := range insns {
			seq.Append(insn)
		}
	}
	return seq, nil
}

// aluSuffix strips a trailing "32" or "64" from an ALU/neg mnemonic and
// reports whether the 32-bit class was requested. Absence of a suffix
// defaults to the 64-bit ALU class, matching conventional BPF assembly.
func aluSuffix(mnemonic string) (root string, is32 bool) {
	switch {
	case strings.HasSuffix(mnemonic, "32"):
		return strings.TrimSuffix(mnemonic, "32"), true
	case strings.HasSuffix(mnemonic, "64"):
		return strings.TrimSuffix(mnemonic, "64"), false
	default:
		return mnemonic, false
	}
}

func encodeOne(p ParsedInstruction) ([]program.Instruction, error) {
	m := p.Mnemonic

	switch {
	case m == "exit":
		return one(encodeNoOperand(p))
	case m == "call":
		return one(encodeCall(p))
	case m == "ja":
		return one(encodeJumpUncond(p))
	case m == "lddw":
		return encodeLoadImm(p)
	case isEndian(m):
		return one(encodeEndian(p))
	case isLoadReg(m):
		return one(encodeLoadReg(p))
	case isStoreReg(m):
		return one(encodeStoreReg(p))
	case isStoreImm(m):
		return one(encodeStoreImm(p))
	case isLoadAbs(m):
		return one(encodeLoadAbs(p))
	case isLoadInd(m):
		return one(encodeLoadInd(p))
	}

	if root, is32 := aluSuffix(m); root == "neg" {
		return one(encodeAluUnary(p, is32))
	}
	if root, is32 := aluSuffix(m); isAluBinaryRoot(root) {
		return one(encodeAluBinary(p, root, is32))
	}
	if isJumpCond(m) {
		return one(encodeJumpCond(p))
	}

	return nil, newErr(p.Pos, ParseFailed, "unknown mnemonic %q", m)
}

func one(insn program.Instruction, err error) ([]program.Instruction, error) {
	if err != nil {
		return nil, err
	}
	return []program.Instruction{insn}, nil
}

func isAluBinaryRoot(root string) bool {
	_, ok := isa.AluCode(root)
	return ok && root != "neg"
}

func isJumpCond(m string) bool {
	_, ok := isa.JmpCode(m)
	return ok
}

func isEndian(m string) bool {
	return hasAnySuffix(m, "be16", "be32", "be64", "le16", "le32", "le64")
}

func hasAnySuffix(m string, options ...string) bool {
	for _, o := range options {
		if m == o {
			return true
		}
	}
	return false
}

func isLoadReg(m string) bool  { return hasSizedPrefix(m, "ldx") }
func isStoreReg(m string) bool { return hasSizedPrefix(m, "stx") }
func isStoreImm(m string) bool { return hasSizedPrefix(m, "st") && !strings.HasPrefix(m, "stx") }
func isLoadAbs(m string) bool  { return hasSizedPrefix(m, "ldabs") }
func isLoadInd(m string) bool  { return hasSizedPrefix(m, "ldind") }

func hasSizedPrefix(m, prefix string) bool {
	if !strings.HasPrefix(m, prefix) {
		return false
	}
	_, ok := isa.MemSize(strings.TrimPrefix(m, prefix))
	return ok
}

func memSize(mnemonic, prefix string) isa.Size {
	sz, _ := isa.MemSize(strings.TrimPrefix(mnemonic, prefix))
	return sz
}

// --- Category encoders (spec.md §4.3) ---

func encodeNoOperand(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 0 {
		return badShape(p)
	}
	op := isa.MakeAluOp(isa.ClassJMP, isa.SrcImm, isa.JmpExit)
	return program.NewInstruction(op, 0, 0, 0, 0)
}

func encodeCall(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 1 || p.Operands[0].Kind != OperandInteger {
		return badShape(p)
	}
	op := isa.MakeAluOp(isa.ClassJMP, isa.SrcImm, isa.JmpCall)
	imm := p.Operands[0].Int
	if err := checkImm(p, imm); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, 0, 0, 0, imm)
}

func encodeJumpUncond(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 1 || p.Operands[0].Kind != OperandInteger {
		return badShape(p)
	}
	off := p.Operands[0].Int
	if err := checkOffset(p, off); err != nil {
		return program.Instruction{}, err
	}
	op := isa.MakeAluOp(isa.ClassJMP, isa.SrcImm, isa.JmpJA)
	return program.NewInstruction(op, 0, 0, int16(off), 0)
}

func encodeLoadImm(p ParsedInstruction) ([]program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandRegister || p.Operands[1].Kind != OperandInteger {
		i, err := badShape(p)
		return []program.Instruction{i}, err
	}
	dst := p.Operands[0].Reg
	imm := p.Operands[1].Int
	insn, err := program.NewInstruction(isa.LDDW, dst, 0, 0, imm)
	if err != nil {
		return nil, wrapEncodeErr(p, err)
	}
	return []program.Instruction{insn}, nil
}

func encodeEndian(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 1 || p.Operands[0].Kind != OperandRegister {
		return badShape(p)
	}
	src := isa.SrcImm
	width := 0
	switch {
	case strings.HasPrefix(p.Mnemonic, "be"):
		src = isa.SrcReg
		width = atoiMust(strings.TrimPrefix(p.Mnemonic, "be"))
	case strings.HasPrefix(p.Mnemonic, "le"):
		width = atoiMust(strings.TrimPrefix(p.Mnemonic, "le"))
	}
	op := isa.MakeAluOp(isa.ClassALU, src, isa.AluEnd)
	return program.NewInstruction(op, p.Operands[0].Reg, 0, 0, int64(width))
}

func atoiMust(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func encodeLoadReg(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandRegister || p.Operands[1].Kind != OperandMemory {
		return badShape(p)
	}
	sz := memSize(p.Mnemonic, "ldx")
	op := isa.MakeMemOp(isa.ClassLDX, isa.ModeMem, sz)
	mem := p.Operands[1]
	if err := checkOffset(p, mem.MemOff); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, p.Operands[0].Reg, mem.MemBase, int16(mem.MemOff), 0)
}

func encodeStoreReg(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandMemory || p.Operands[1].Kind != OperandRegister {
		return badShape(p)
	}
	sz := memSize(p.Mnemonic, "stx")
	op := isa.MakeMemOp(isa.ClassSTX, isa.ModeMem, sz)
	mem := p.Operands[0]
	if err := checkOffset(p, mem.MemOff); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, mem.MemBase, p.Operands[1].Reg, int16(mem.MemOff), 0)
}

func encodeStoreImm(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandMemory || p.Operands[1].Kind != OperandInteger {
		return badShape(p)
	}
	sz := memSize(p.Mnemonic, "st")
	op := isa.MakeMemOp(isa.ClassST, isa.ModeMem, sz)
	mem := p.Operands[0]
	if err := checkOffset(p, mem.MemOff); err != nil {
		return program.Instruction{}, err
	}
	imm := p.Operands[1].Int
	if err := checkImm(p, imm); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, mem.MemBase, 0, int16(mem.MemOff), imm)
}

func encodeLoadAbs(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 1 || p.Operands[0].Kind != OperandInteger {
		return badShape(p)
	}
	sz := memSize(p.Mnemonic, "ldabs")
	op := isa.MakeMemOp(isa.ClassLD, isa.ModeAbs, sz)
	imm := p.Operands[0].Int
	if err := checkImm(p, imm); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, 0, 0, 0, imm)
}

func encodeLoadInd(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandRegister || p.Operands[1].Kind != OperandInteger {
		return badShape(p)
	}
	sz := memSize(p.Mnemonic, "ldind")
	op := isa.MakeMemOp(isa.ClassLD, isa.ModeInd, sz)
	imm := p.Operands[1].Int
	if err := checkImm(p, imm); err != nil {
		return program.Instruction{}, err
	}
	return program.NewInstruction(op, p.Operands[0].Reg, 0, 0, imm)
}

func encodeAluUnary(p ParsedInstruction, is32 bool) (program.Instruction, error) {
	if len(p.Operands) != 1 || p.Operands[0].Kind != OperandRegister {
		return badShape(p)
	}
	class := isa.ClassALU64
	if is32 {
		class = isa.ClassALU
	}
	op := isa.MakeAluOp(class, isa.SrcImm, isa.AluNeg)
	return program.NewInstruction(op, p.Operands[0].Reg, 0, 0, 0)
}

func encodeAluBinary(p ParsedInstruction, root string, is32 bool) (program.Instruction, error) {
	if len(p.Operands) != 2 || p.Operands[0].Kind != OperandRegister {
		return badShape(p)
	}
	class := isa.ClassALU64
	if is32 {
		class = isa.ClassALU
	}
	code, _ := isa.AluCode(root)
	dst := p.Operands[0].Reg

	switch p.Operands[1].Kind {
	case OperandRegister:
		op := isa.MakeAluOp(class, isa.SrcReg, code)
		return program.NewInstruction(op, dst, p.Operands[1].Reg, 0, 0)
	case OperandInteger:
		imm := p.Operands[1].Int
		if err := checkImm(p, imm); err != nil {
			return program.Instruction{}, err
		}
		op := isa.MakeAluOp(class, isa.SrcImm, code)
		return program.NewInstruction(op, dst, 0, 0, imm)
	default:
		return badShape(p)
	}
}

func encodeJumpCond(p ParsedInstruction) (program.Instruction, error) {
	if len(p.Operands) != 3 || p.Operands[0].Kind != OperandRegister || p.Operands[2].Kind != OperandInteger {
		return badShape(p)
	}
	code, _ := isa.JmpCode(p.Mnemonic)
	dst := p.Operands[0].Reg
	off := p.Operands[2].Int
	if err := checkOffset(p, off); err != nil {
		return program.Instruction{}, err
	}

	switch p.Operands[1].Kind {
	case OperandRegister:
		op := isa.MakeAluOp(isa.ClassJMP, isa.SrcReg, code)
		return program.NewInstruction(op, dst, p.Operands[1].Reg, int16(off), 0)
	case OperandInteger:
		imm := p.Operands[1].Int
		if err := checkImm(p, imm); err != nil {
			return program.Instruction{}, err
		}
		op := isa.MakeAluOp(isa.ClassJMP, isa.SrcImm, code)
		return program.NewInstruction(op, dst, 0, int16(off), imm)
	default:
		return badShape(p)
	}
}

func badShape(p ParsedInstruction) (program.Instruction, error) {
	return program.Instruction{}, newErr(p.Pos, ParseFailed, "operand shape does not match %q", p.Mnemonic)
}

func checkOffset(p ParsedInstruction, off int64) error {
	if off < -32768 || off > 32767 {
		return newErr(p.Pos, InvalidOffset, "offset %d out of range for %q", off, p.Mnemonic)
	}
	return nil
}

func checkImm(p ParsedInstruction, imm int64) error {
	if imm < -(1<<31) || imm > (1<<31)-1 {
		return newErr(p.Pos, InvalidImmediate, "immediate %d out of range for %q", imm, p.Mnemonic)
	}
	return nil
}

func wrapEncodeErr(p ParsedInstruction, err error) error {
	kind := ParseFailed
	switch {
	case errorsIs(err, "dst"):
		kind = InvalidDst
	case errorsIs(err, "src"):
		kind = InvalidSrc
	}
	return newErr(p.Pos, kind, "%v", err)
}

func errorsIs(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}

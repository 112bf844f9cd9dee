// Package disasm renders an in-memory instruction Sequence back into the
// canonical textual assembly form (spec.md §4.5), the inverse of asm.Assemble
// modulo numeric formatting (hex vs decimal).
package disasm

import (
	"fmt"
	"strings"

	"github.com/ubpfvm/ubpfvm/isa"
	"github.com/ubpfvm/ubpfvm/program"
)

// Format renders every instruction in seq as one line of canonical assembly.
func Format(seq *program.Sequence) string {
	var sb strings.Builder
	insns := seq.All()
	for i := 0; i < len(insns); i++ {
		line, skip := formatOne(insns, i)
		sb.WriteString(line)
		sb.WriteString("\n")
		i += skip
	}
	return sb.String()
}

// FormatOne renders the instruction at index i as one line. An lddw is a
// single merged record in a Sequence, so it renders as one line too.
func FormatOne(insns []program.Instruction, i int) string {
	line, _ := formatOne(insns, i)
	return line
}

func formatOne(insns []program.Instruction, i int) (string, int) {
	insn := insns[i]
	class := isa.OpClass(insn.Op)

	switch class {
	case isa.ClassALU, isa.ClassALU64:
		return formatAlu(insn, class), 0
	case isa.ClassJMP:
		return formatJmp(insn), 0
	case isa.ClassLD:
		if insn.Op == isa.LDDW {
			return fmt.Sprintf("lddw r%d, 0x%x", insn.Dst(), uint64(insn.Imm)), 0
		}
		return formatLoadAbsInd(insn), 0
	case isa.ClassLDX:
		return formatLoadReg(insn), 0
	case isa.ClassST:
		return formatStoreImm(insn), 0
	case isa.ClassSTX:
		return formatStoreReg(insn), 0
	default:
		return fmt.Sprintf("; unknown opcode 0x%02x", insn.Op), 0
	}
}

func formatAlu(insn program.Instruction, class isa.Class) string {
	code := isa.OpCode(insn.Op)
	suffix := "64"
	if class == isa.ClassALU {
		suffix = "32"
	}

	if code == isa.AluNeg {
		return fmt.Sprintf("neg%s r%d", suffix, insn.Dst())
	}
	if code == isa.AluEnd {
		kind := "le"
		if isa.OpSource(insn.Op) == isa.SrcReg {
			kind = "be"
		}
		return fmt.Sprintf("%s%d r%d", kind, insn.Imm, insn.Dst())
	}

	name, _ := isa.AluName(code)
	if isa.OpSource(insn.Op) == isa.SrcReg {
		return fmt.Sprintf("%s%s r%d, r%d", name, suffix, insn.Dst(), insn.Src())
	}
	return fmt.Sprintf("%s%s r%d, %d", name, suffix, insn.Dst(), insn.Imm)
}

func formatJmp(insn program.Instruction) string {
	code := isa.OpCode(insn.Op)
	switch code {
	case isa.JmpExit:
		return "exit"
	case isa.JmpCall:
		return fmt.Sprintf("call %d", insn.Imm)
	case isa.JmpJA:
		return fmt.Sprintf("ja %+d", insn.Offset)
	}

	name, _ := isa.JmpName(code)
	if isa.OpSource(insn.Op) == isa.SrcReg {
		return fmt.Sprintf("%s r%d, r%d, %+d", name, insn.Dst(), insn.Src(), insn.Offset)
	}
	return fmt.Sprintf("%s r%d, %d, %+d", name, insn.Dst(), insn.Imm, insn.Offset)
}

func formatLoadReg(insn program.Instruction) string {
	sz, _ := isa.MemSizeName(isa.OpSize(insn.Op))
	return fmt.Sprintf("ldx%s r%d, [r%d%+d]", sz, insn.Dst(), insn.Src(), insn.Offset)
}

func formatStoreReg(insn program.Instruction) string {
	sz, _ := isa.MemSizeName(isa.OpSize(insn.Op))
	return fmt.Sprintf("stx%s [r%d%+d], r%d", sz, insn.Dst(), insn.Offset, insn.Src())
}

func formatStoreImm(insn program.Instruction) string {
	sz, _ := isa.MemSizeName(isa.OpSize(insn.Op))
	return fmt.Sprintf("st%s [r%d%+d], %d", sz, insn.Dst(), insn.Offset, insn.Imm)
}

func formatLoadAbsInd(insn program.Instruction) string {
	sz, _ := isa.MemSizeName(isa.OpSize(insn.Op))
	mode := isa.OpMode(insn.Op)
	if mode == isa.ModeAbs {
		return fmt.Sprintf("ldabs%s %d", sz, insn.Imm)
	}
	return fmt.Sprintf("ldind%s r%d, %d", sz, insn.Dst(), insn.Imm)
}

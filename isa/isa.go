// Package isa defines the canonical opcode tables for the BPF bytecode
// family: the name<->nibble maps for ALU operations, jump conditions and
// memory sizes, plus the bitfield layout of the 8-bit opcode byte.
//
// Tables are built once in init() and are read-only afterwards, so they may
// be shared freely across VM instances and goroutines (see spec.md §5).
package isa

// Class occupies bits 0-2 of the opcode byte.
type Class uint8

const (
	ClassLD    Class = 0
	ClassLDX   Class = 1
	ClassST    Class = 2
	ClassSTX   Class = 3
	ClassALU   Class = 4
	ClassJMP   Class = 5
	ClassRET   Class = 6
	ClassALU64 Class = 7

	classMask = 0x07
)

// Size occupies bits 3-4 of a memory opcode.
type Size uint8

const (
	SizeW  Size = 0 // 32-bit
	SizeH  Size = 1 // 16-bit
	SizeB  Size = 2 // 8-bit
	SizeDW Size = 3 // 64-bit

	sizeShift = 3
	sizeMask  = 0x03
)

// Mode occupies bits 5-7 of a memory opcode.
type Mode uint8

const (
	ModeMem  Mode = 0
	ModeImm  Mode = 1
	ModeAbs  Mode = 2
	ModeInd  Mode = 3
	ModeXAdd Mode = 4

	modeShift = 5
)

// Source is bit 3 of an ALU/JMP opcode: selects immediate vs register operand.
type Source uint8

const (
	SrcImm Source = 0
	SrcReg Source = 1

	srcShift = 3
	srcMask  = 0x01
)

// opShift is the bit position of the ALU/JMP operation nibble (bits 4-7).
const opShift = 4

// ALU operation nibbles (bits 4-7 of an ALU32/ALU64 opcode).
const (
	AluAdd  = 0x0
	AluSub  = 0x1
	AluMul  = 0x2
	AluDiv  = 0x3
	AluOr   = 0x4
	AluAnd  = 0x5
	AluLsh  = 0x6
	AluRsh  = 0x7
	AluNeg  = 0x8
	AluMod  = 0x9
	AluXor  = 0xa
	AluMov  = 0xb
	AluArsh = 0xc
	AluEnd  = 0xd
)

// Jump condition nibbles (bits 4-7 of a JMP opcode).
const (
	JmpJA   = 0x0
	JmpJEQ  = 0x1
	JmpJGT  = 0x2
	JmpJGE  = 0x3
	JmpJSET = 0x4
	JmpJNE  = 0x5
	JmpJSGT = 0x6
	JmpJSGE = 0x7
	JmpCall = 0x8
	JmpExit = 0x9
	JmpJLT  = 0xa
	JmpJLE  = 0xb
	JmpJSLT = 0xc
	JmpJSLE = 0xd
)

// LDDW is the only instruction that spans two packed 8-byte slots.
const LDDW uint8 = 0x18

// OpClass extracts the instruction class from an opcode byte.
func OpClass(op uint8) Class { return Class(op & classMask) }

// OpSize extracts the size bits from a memory opcode.
func OpSize(op uint8) Size { return Size((op >> sizeShift) & sizeMask) }

// OpMode extracts the mode bits from a memory opcode.
func OpMode(op uint8) Mode { return Mode(op >> modeShift) }

// OpSource extracts the source bit from an ALU/JMP opcode.
func OpSource(op uint8) Source { return Source((op >> srcShift) & srcMask) }

// OpCode extracts the ALU operation / jump condition nibble.
func OpCode(op uint8) uint8 { return op >> opShift }

// MakeMemOp composes a memory-class opcode byte from its bitfields.
func MakeMemOp(class Class, mode Mode, size Size) uint8 {
	return uint8(class) | uint8(mode)<<modeShift | uint8(size)<<sizeShift
}

// MakeAluOp composes an ALU/JMP-class opcode byte from its bitfields.
func MakeAluOp(class Class, src Source, code uint8) uint8 {
	return uint8(class) | uint8(src)<<srcShift | code<<opShift
}

// aluNames maps a lowercase ALU mnemonic root to its operation nibble.
var aluNames = map[string]uint8{
	"add": AluAdd, "sub": AluSub, "mul": AluMul, "div": AluDiv,
	"or": AluOr, "and": AluAnd, "lsh": AluLsh, "rsh": AluRsh,
	"neg": AluNeg, "mod": AluMod, "xor": AluXor, "mov": AluMov,
	"arsh": AluArsh,
}

var aluNamesRev = make(map[uint8]string, len(aluNames))

// jmpNames maps a lowercase jump mnemonic to its condition nibble.
var jmpNames = map[string]uint8{
	"jeq": JmpJEQ, "jgt": JmpJGT, "jge": JmpJGE, "jset": JmpJSET,
	"jne": JmpJNE, "jsgt": JmpJSGT, "jsge": JmpJSGE,
	"jlt": JmpJLT, "jle": JmpJLE, "jslt": JmpJSLT, "jsle": JmpJSLE,
}

var jmpNamesRev = make(map[uint8]string, len(jmpNames))

// memSizes maps a memory-op size suffix to its Size nibble.
var memSizes = map[string]Size{
	"w": SizeW, "h": SizeH, "b": SizeB, "dw": SizeDW,
}

var memSizesRev = make(map[Size]string, len(memSizes))

func init() {
	for name, code := range aluNames {
		aluNamesRev[code] = name
	}
	for name, code := range jmpNames {
		jmpNamesRev[code] = name
	}
	for name, sz := range memSizes {
		memSizesRev[sz] = name
	}
}

// AluCode looks up the operation nibble for an ALU mnemonic root (e.g. "add").
func AluCode(name string) (uint8, bool) { v, ok := aluNames[name]; return v, ok }

// AluName returns the mnemonic root for an ALU operation nibble.
func AluName(code uint8) (string, bool) { v, ok := aluNamesRev[code]; return v, ok }

// JmpCode looks up the condition nibble for a jump mnemonic (e.g. "jeq").
func JmpCode(name string) (uint8, bool) { v, ok := jmpNames[name]; return v, ok }

// JmpName returns the mnemonic for a jump condition nibble.
func JmpName(code uint8) (string, bool) { v, ok := jmpNamesRev[code]; return v, ok }

// MemSize looks up the Size for a memory-op suffix ("w", "h", "b", "dw").
func MemSize(suffix string) (Size, bool) { v, ok := memSizes[suffix]; return v, ok }

// MemSizeName returns the suffix for a Size value.
func MemSizeName(sz Size) (string, bool) { v, ok := memSizesRev[sz]; return v, ok }

// SizeBytes returns the width in bytes of a memory Size.
func SizeBytes(sz Size) int {
	switch sz {
	case SizeW:
		return 4
	case SizeH:
		return 2
	case SizeB:
		return 1
	case SizeDW:
		return 8
	default:
		return 0
	}
}

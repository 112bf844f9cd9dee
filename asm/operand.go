package asm

// OperandKind tags the four operand shapes of spec.md §3.
type OperandKind int

const (
	OperandNil OperandKind = iota
	OperandRegister
	OperandInteger
	OperandMemory
)

// Operand is the tagged-variant operand type: Register(r), Integer(i64),
// Memory(base, offset), or the Nil sentinel used for pattern matching.
type Operand struct {
	Kind    OperandKind
	Reg     uint8
	Int     int64
	MemBase uint8
	MemOff  int64
}

// ParsedInstruction is a mnemonic plus an ordered, 0-3 element operand list,
// the output of the grammar in spec.md §4.2, consumed by the encoder.
type ParsedInstruction struct {
	Mnemonic string
	Operands []Operand
	Pos      Position
}

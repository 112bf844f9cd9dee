// Package program holds the canonical in-memory instruction record and the
// encoder/decoder that round-trip it to the packed 8-byte-word wire format.
package program

import "fmt"

// Instruction is the canonical in-memory record (spec.md §3).
//
// Regs packs the destination register in the low nibble and the source
// register in the high nibble. Imm carries the low 32 bits for ordinary
// instructions; for LDDW it carries the full 64-bit immediate.
type Instruction struct {
	Op     uint8
	Regs   uint8
	Offset int16
	Imm    int64
}

// Dst returns the destination register, 0-15.
func (i Instruction) Dst() uint8 { return i.Regs & 0x0f }

// Src returns the source register, 0-15.
func (i Instruction) Src() uint8 { return (i.Regs >> 4) & 0x0f }

// NewInstruction packs a destination/source register pair into Regs and
// returns a fully-formed record. dst and src must be in [0,15].
func NewInstruction(op uint8, dst, src uint8, offset int16, imm int64) (Instruction, error) {
	if dst > 15 {
		return Instruction{}, fmt.Errorf("%w: dst register %d", ErrInvalidDst, dst)
	}
	if src > 15 {
		return Instruction{}, fmt.Errorf("%w: src register %d", ErrInvalidSrc, src)
	}
	return Instruction{Op: op, Regs: dst | src<<4, Offset: offset, Imm: imm}, nil
}

// Sequence is an ordered, 0-indexed, contiguous list of instructions.
type Sequence struct {
	insns []Instruction
}

// NewSequence wraps a slice of instructions as a Sequence.
func NewSequence(insns []Instruction) *Sequence {
	return &Sequence{insns: append([]Instruction(nil), insns...)}
}

// Len returns the number of logical instructions.
func (s *Sequence) Len() int { return len(s.insns) }

// At returns the instruction at index pc. The caller must ensure pc is in range.
func (s *Sequence) At(pc int) Instruction { return s.insns[pc] }

// All returns the underlying instruction slice; callers must not mutate it.
func (s *Sequence) All() []Instruction { return s.insns }

// Append adds an instruction to the end of the sequence.
func (s *Sequence) Append(i Instruction) { s.insns = append(s.insns, i) }

// WordLen returns how many 8-byte wire slots the instruction at index i
// occupies: 2 for lddw, 1 otherwise (spec.md §3). Jump offsets are
// pc-relative in word units (inherited from the packed wire format), so
// anything that walks program counters must count in words, not list
// indices, once an lddw appears earlier in the sequence.
func (s *Sequence) WordLen(i int) int {
	if s.insns[i].Op == lddwOp {
		return 2
	}
	return 1
}

// WordIndex maps between the word-pc space jump offsets are expressed in
// and the logical (merged) instruction list Sequence stores.
type WordIndex struct {
	startWord []int // startWord[i] = word-pc where logical instruction i begins
	atWord    []int // atWord[w] = logical index starting at word w, or -1
}

// BuildWordIndex precomputes the word-pc <-> logical-index mapping once;
// call it before interpreting or JIT-translating a Sequence.
func (s *Sequence) BuildWordIndex() *WordIndex {
	wi := &WordIndex{startWord: make([]int, s.Len())}
	total := 0
	for i := range s.insns {
		wi.startWord[i] = total
		total += s.WordLen(i)
	}
	wi.atWord = make([]int, total+1)
	for i := range wi.atWord {
		wi.atWord[i] = -1
	}
	for i, w := range wi.startWord {
		wi.atWord[w] = i
	}
	return wi
}

// StartWord returns the word-pc where logical instruction i begins.
func (wi *WordIndex) StartWord(i int) int { return wi.startWord[i] }

// IndexAtWord returns the logical instruction index beginning at word-pc w,
// and false if w does not land exactly on an instruction boundary (e.g. the
// second slot of an lddw, or past the end of the program).
func (wi *WordIndex) IndexAtWord(w int) (int, bool) {
	if w < 0 || w >= len(wi.atWord) {
		return 0, false
	}
	idx := wi.atWord[w]
	return idx, idx >= 0
}

// TotalWords returns the number of 8-byte wire slots the sequence occupies.
func (wi *WordIndex) TotalWords() int { return len(wi.atWord) - 1 }

// Equal reports whether two sequences hold identical instruction records.
func (s *Sequence) Equal(other *Sequence) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, insn := range s.insns {
		if insn != other.insns[i] {
			return false
		}
	}
	return true
}

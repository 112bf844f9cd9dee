package program

import "encoding/binary"

const wordSize = 8

// Encode packs a Sequence into little-endian 8-byte words (spec.md §6).
// An LDDW instruction occupies two consecutive words: the first carries
// Op/Regs/Offset and the low 32 bits of Imm, the second is all-zero except
// for the high 32 bits of Imm in its imm position.
func Encode(seq *Sequence) []byte {
	out := make([]byte, 0, seq.Len()*wordSize)
	for _, insn := range seq.All() {
		out = appendWord(out, insn.Op, insn.Regs, insn.Offset, int32(insn.Imm))
		if insn.Op == lddwOp {
			high := int32(uint64(insn.Imm) >> 32)
			out = appendWord(out, 0, 0, 0, high)
		}
	}
	return out
}

const lddwOp = 0x18

func appendWord(out []byte, op, regs uint8, offset int16, imm int32) []byte {
	var w [wordSize]byte
	w[0] = op
	w[1] = regs
	binary.LittleEndian.PutUint16(w[2:4], uint16(offset))
	binary.LittleEndian.PutUint32(w[4:8], uint32(imm))
	return append(out, w[:]...)
}

// Decode unpacks a byte slice (whose length must be a multiple of 8) into a
// Sequence, merging the two slots of every LDDW back into one record.
func Decode(data []byte) (*Sequence, error) {
	if len(data)%wordSize != 0 {
		return nil, ErrBadLength
	}
	seq := &Sequence{}
	for i := 0; i < len(data); i += wordSize {
		word := data[i : i+wordSize]
		op := word[0]
		regs := word[1]
		offset := int16(binary.LittleEndian.Uint16(word[2:4]))
		low := int32(binary.LittleEndian.Uint32(word[4:8]))

		if op == lddwOp {
			if i+2*wordSize > len(data) {
				return nil, ErrTruncatedLDDW
			}
			hiWord := data[i+wordSize : i+2*wordSize]
			high := int32(binary.LittleEndian.Uint32(hiWord[4:8]))
			imm := int64(uint64(uint32(high))<<32 | uint64(uint32(low)))
			seq.Append(Instruction{Op: op, Regs: regs, Offset: offset, Imm: imm})
			i += wordSize // consume the zero-op second slot
			continue
		}

		seq.Append(Instruction{Op: op, Regs: regs, Offset: offset, Imm: int64(low)})
	}
	return seq, nil
}

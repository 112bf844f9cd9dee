package program

import "errors"

// Sentinel errors from the encoder, wrapped with context via fmt.Errorf's %w.
var (
	ErrInvalidDst       = errors.New("invalid destination register")
	ErrInvalidSrc       = errors.New("invalid source register")
	ErrInvalidOffset    = errors.New("invalid offset")
	ErrInvalidImmediate = errors.New("invalid immediate")
	ErrTruncatedWord    = errors.New("truncated instruction word")
	ErrTruncatedLDDW    = errors.New("truncated lddw second slot")
	ErrBadLength        = errors.New("byte length is not a multiple of 8")
)

const (
	minOffset = -32768
	maxOffset = 32767
	minImm32  = -(1 << 31)
	maxImm32  = (1 << 31) - 1
)

// CheckOffset validates a signed 16-bit offset field (spec.md §3).
func CheckOffset(off int64) error {
	if off < minOffset || off > maxOffset {
		return ErrInvalidOffset
	}
	return nil
}

// CheckImm32 validates a signed 32-bit immediate field (all instructions
// except LDDW, spec.md §3).
func CheckImm32(imm int64) error {
	if imm < minImm32 || imm > maxImm32 {
		return ErrInvalidImmediate
	}
	return nil
}

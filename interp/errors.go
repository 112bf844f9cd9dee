package interp

import "fmt"

// VmError is the runtime error taxonomy of spec.md §6: DivZero,
// MemOutOfBound, plus the HelperNotFound and FuelExhausted extensions of
// SPEC_FULL.md §4.13/§4.10.
type VmError struct {
	Kind    VmErrorKind
	Message string
}

func (e *VmError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// VmErrorKind enumerates the runtime error taxonomy.
type VmErrorKind int

const (
	DivZero VmErrorKind = iota
	MemOutOfBound
	HelperNotFound
	FuelExhausted
	UnknownOpcode
)

func (k VmErrorKind) String() string {
	switch k {
	case DivZero:
		return "DivZero"
	case MemOutOfBound:
		return "MemOutOfBound"
	case HelperNotFound:
		return "HelperNotFound"
	case FuelExhausted:
		return "FuelExhausted"
	case UnknownOpcode:
		return "UnknownOpcode"
	default:
		return "Unknown"
	}
}

func newVmErr(kind VmErrorKind, format string, args ...any) *VmError {
	return &VmError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

package interp

import (
	"encoding/binary"
	"math/bits"

	"github.com/ubpfvm/ubpfvm/isa"
	"github.com/ubpfvm/ubpfvm/program"
)

// Run executes the bound sequence from its current pc (normally 0 after
// Reset) until `exit`, returning r0, or until a fatal/recoverable error
// occurs (spec.md §4.6 "Dispatch"/"Exit").
func (vm *VM) Run() (result int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newVmErr(MemOutOfBound, "unchecked memory access faulted: %v", r)
		}
	}()

	insns := vm.seq.All()
	for {
		if vm.MaxInstructions != 0 && vm.executed >= vm.MaxInstructions {
			return 0, newVmErr(FuelExhausted, "exceeded %d instructions", vm.MaxInstructions)
		}
		idx, ok := vm.wordIdx.IndexAtWord(vm.PC)
		if !ok {
			return 0, newVmErr(UnknownOpcode, "pc %d is not a valid instruction boundary", vm.PC)
		}
		insn := insns[idx]
		vm.executed++

		exited, ret, err := vm.step(idx, insn)
		if err != nil {
			return 0, err
		}
		if exited {
			return ret, nil
		}
	}
}

// Step executes exactly one instruction and reports whether the VM is still
// running afterward (false once `exit` has fired), for callers that need to
// interleave execution with their own inspection between instructions (the
// debug TUI's single-step command, SPEC_FULL.md §4.12).
func (vm *VM) Step() (result int64, running bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newVmErr(MemOutOfBound, "unchecked memory access faulted: %v", r)
		}
	}()

	if vm.MaxInstructions != 0 && vm.executed >= vm.MaxInstructions {
		return 0, false, newVmErr(FuelExhausted, "exceeded %d instructions", vm.MaxInstructions)
	}
	idx, ok := vm.wordIdx.IndexAtWord(vm.PC)
	if !ok {
		return 0, false, newVmErr(UnknownOpcode, "pc %d is not a valid instruction boundary", vm.PC)
	}
	insn := vm.seq.All()[idx]
	vm.executed++

	exited, ret, err := vm.step(idx, insn)
	if err != nil {
		return 0, false, err
	}
	if exited {
		return ret, false, nil
	}
	return 0, true, nil
}

// step executes one instruction and reports whether it was `exit`. wordLen
// is the instruction's footprint in 8-byte wire slots (1, or 2 for lddw)
// and is how the fallthrough path advances vm.PC, which is tracked in word
// units to match jump-offset semantics (spec.md §3, §9).
func (vm *VM) step(idx int, insn program.Instruction) (exited bool, result int64, err error) {
	if insn.Dst() > frameReg || insn.Src() > frameReg {
		return false, 0, newVmErr(UnknownOpcode, "register out of r0..r10 range (dst=%d src=%d)", insn.Dst(), insn.Src())
	}

	wordLen := vm.seq.WordLen(idx)
	class := isa.OpClass(insn.Op)

	switch class {
	case isa.ClassALU:
		if err := vm.execAlu(insn, true); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	case isa.ClassALU64:
		if err := vm.execAlu(insn, false); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	case isa.ClassJMP:
		return vm.execJmp(insn, wordLen)
	case isa.ClassLD:
		if insn.Op == isa.LDDW {
			vm.Regs[insn.Dst()] = insn.Imm
			vm.PC += wordLen
			return false, 0, nil
		}
		if err := vm.execLoadAbsInd(insn); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	case isa.ClassLDX:
		if err := vm.execLoadReg(insn); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	case isa.ClassST:
		if err := vm.execStoreImm(insn); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	case isa.ClassSTX:
		if err := vm.execStoreReg(insn); err != nil {
			return false, 0, err
		}
		vm.PC += wordLen
	default:
		return false, 0, newVmErr(UnknownOpcode, "unhandled class for opcode 0x%02x", insn.Op)
	}
	return false, 0, nil
}

func (vm *VM) execAlu(insn program.Instruction, is32 bool) error {
	code := isa.OpCode(insn.Op)
	dst := insn.Dst()

	var src int64
	if isa.OpSource(insn.Op) == isa.SrcReg {
		src = vm.Regs[insn.Src()]
	} else {
		src = insn.Imm
	}

	d := vm.Regs[dst]

	if code == isa.AluEnd {
		vm.Regs[dst] = execEndian(d, insn.Imm, isa.OpSource(insn.Op) == isa.SrcReg)
		return nil
	}

	var result int64
	switch code {
	case isa.AluAdd:
		result = d + src
	case isa.AluSub:
		result = d - src
	case isa.AluMul:
		result = d * src
	case isa.AluDiv:
		r, err := divide(d, src, is32, false)
		if err != nil {
			return err
		}
		result = r
	case isa.AluMod:
		r, err := divide(d, src, is32, true)
		if err != nil {
			return err
		}
		result = r
	case isa.AluOr:
		result = d | src
	case isa.AluAnd:
		result = d & src
	case isa.AluXor:
		result = d ^ src
	case isa.AluMov:
		result = src
	case isa.AluLsh:
		if is32 {
			result = int64(uint32(d) << (uint32(src) & 31))
		} else {
			result = int64(uint64(d) << (uint64(src) & 63))
		}
	case isa.AluRsh:
		if is32 {
			result = int64(uint32(d) >> (uint32(src) & 31))
		} else {
			result = int64(uint64(d) >> (uint64(src) & 63))
		}
	case isa.AluArsh:
		if is32 {
			result = int64(int32(d) >> (uint32(src) & 31))
		} else {
			result = d >> (uint64(src) & 63)
		}
	case isa.AluNeg:
		if is32 {
			result = int64(-int32(d))
		} else {
			result = -d
		}
	default:
		return newVmErr(UnknownOpcode, "unhandled ALU op nibble 0x%x", code)
	}

	if is32 {
		result = int64(uint32(result))
	}
	vm.Regs[dst] = result
	return nil
}

// divide implements the division-sign convention chosen in
// SPEC_FULL.md §9: the 32-bit path masks both operands to u32 and divides
// unsigned; the 64-bit path uses signed i64 division.
func divide(d, src int64, is32, mod bool) (int64, error) {
	if is32 {
		su := uint32(src)
		if su == 0 {
			return 0, newVmErr(DivZero, "division by zero")
		}
		du := uint32(d)
		if mod {
			return int64(du % su), nil
		}
		return int64(du / su), nil
	}
	if src == 0 {
		return 0, newVmErr(DivZero, "division by zero")
	}
	if mod {
		return d % src, nil
	}
	return d / src, nil
}

// execEndian implements the `le`/`be` Open Question resolution of
// SPEC_FULL.md §9: on this little-endian host, `le*` is a pure width mask
// (a no-op byte order change) and `be*` performs a full byte-swap of the
// selected window.
func execEndian(v, imm int64, toBE bool) int64 {
	u := uint64(v)
	switch imm {
	case 16:
		x := uint16(u)
		if toBE {
			x = bits.ReverseBytes16(x)
		}
		return int64(x)
	case 32:
		x := uint32(u)
		if toBE {
			x = bits.ReverseBytes32(x)
		}
		return int64(x)
	case 64:
		x := u
		if toBE {
			x = bits.ReverseBytes64(x)
		}
		return int64(x)
	default:
		return v
	}
}

// execJmp handles the JMP class. Every jump instruction occupies exactly one
// word, and Offset is pc-relative to the word *after* the jump (spec.md §9),
// so a taken branch lands at vm.PC+wordLen+Offset while the fallthrough path
// simply advances by wordLen, matching the ALU/load/store cases in step.
func (vm *VM) execJmp(insn program.Instruction, wordLen int) (exited bool, result int64, err error) {
	code := isa.OpCode(insn.Op)

	switch code {
	case isa.JmpExit:
		return true, vm.Regs[0], nil
	case isa.JmpJA:
		vm.PC += wordLen + int(insn.Offset)
		return false, 0, nil
	case isa.JmpCall:
		r, err := vm.execCall(insn)
		if err != nil {
			return false, 0, err
		}
		vm.Regs[0] = r
		vm.PC += wordLen
		return false, 0, nil
	}

	dst := vm.Regs[insn.Dst()]
	var src int64
	if isa.OpSource(insn.Op) == isa.SrcReg {
		src = vm.Regs[insn.Src()]
	} else {
		src = insn.Imm
	}

	if jumpTaken(code, dst, src) {
		vm.PC += wordLen + int(insn.Offset)
	} else {
		vm.PC += wordLen
	}
	return false, 0, nil
}

// jumpTaken evaluates the predicate named by a jump mnemonic (spec.md §4.6,
// Testable Property 4): jgt/jge/jlt/jle compare as u64, jsgt/jsge/jslt/jsle
// compare as i64, jset tests AND!=0, jeq/jne test (in)equality.
func jumpTaken(code uint8, dst, src int64) bool {
	switch code {
	case isa.JmpJEQ:
		return dst == src
	case isa.JmpJNE:
		return dst != src
	case isa.JmpJSET:
		return dst&src != 0
	case isa.JmpJGT:
		return uint64(dst) > uint64(src)
	case isa.JmpJGE:
		return uint64(dst) >= uint64(src)
	case isa.JmpJLT:
		return uint64(dst) < uint64(src)
	case isa.JmpJLE:
		return uint64(dst) <= uint64(src)
	case isa.JmpJSGT:
		return dst > src
	case isa.JmpJSGE:
		return dst >= src
	case isa.JmpJSLT:
		return dst < src
	case isa.JmpJSLE:
		return dst <= src
	default:
		return false
	}
}

func (vm *VM) execCall(insn program.Instruction) (int64, error) {
	id := int32(insn.Imm)
	fn, ok := vm.helpers[id]
	if !ok {
		return 0, newVmErr(HelperNotFound, "no helper registered for id %d", id)
	}
	var args [5]int64
	for i := range args {
		args[i] = vm.Regs[1+i]
	}
	return fn(vm, args)
}

// --- Memory ops (spec.md §4.6 "Memory ops", §5 "Memory safety") ---

func (vm *VM) resolve(addr int64, size int, write bool) ([]byte, error) {
	switch {
	case addr >= memoryBaseSentinel && addr < memoryBaseSentinel+int64(len(vm.Mem)):
		off := int(addr - memoryBaseSentinel)
		if off+size > len(vm.Mem) {
			if vm.BoundsCheck {
				return nil, newVmErr(MemOutOfBound, "memory access [%d,%d) out of bounds", off, off+size)
			}
			panic("memory access beyond guest buffer")
		}
		return vm.Mem[off : off+size], nil
	case addr >= stackBaseSentinel && addr < stackBaseSentinel+int64(len(vm.Stack)):
		off := int(addr - stackBaseSentinel)
		if off+size > len(vm.Stack) {
			if vm.BoundsCheck {
				return nil, newVmErr(MemOutOfBound, "stack access [%d,%d) out of bounds", off, off+size)
			}
			panic("stack access beyond guest buffer")
		}
		return vm.Stack[off : off+size], nil
	default:
		if vm.BoundsCheck {
			return nil, newVmErr(MemOutOfBound, "address 0x%x is outside both guest regions", addr)
		}
		panic("dereference of address outside guest regions")
	}
}

func (vm *VM) execLoadReg(insn program.Instruction) error {
	addr := vm.Regs[insn.Src()] + int64(insn.Offset)
	sz := isa.SizeBytes(isa.OpSize(insn.Op))
	buf, err := vm.resolve(addr, sz, false)
	if err != nil {
		return err
	}
	vm.Regs[insn.Dst()] = signExtendLoad(buf, isa.OpSize(insn.Op))
	return nil
}

func (vm *VM) execStoreReg(insn program.Instruction) error {
	addr := vm.Regs[insn.Dst()] + int64(insn.Offset)
	sz := isa.SizeBytes(isa.OpSize(insn.Op))
	buf, err := vm.resolve(addr, sz, true)
	if err != nil {
		return err
	}
	putLE(buf, uint64(vm.Regs[insn.Src()]), sz)
	return nil
}

func (vm *VM) execStoreImm(insn program.Instruction) error {
	addr := vm.Regs[insn.Dst()] + int64(insn.Offset)
	sz := isa.SizeBytes(isa.OpSize(insn.Op))
	buf, err := vm.resolve(addr, sz, true)
	if err != nil {
		return err
	}
	putLE(buf, uint64(insn.Imm), sz)
	return nil
}

// execLoadAbsInd handles LoadAbs/LoadInd (spec.md §4.3); these read from
// guest memory at an absolute or register+imm-indexed address, mirroring
// classic BPF packet-load semantics against the configured guest buffer.
func (vm *VM) execLoadAbsInd(insn program.Instruction) error {
	sz := isa.SizeBytes(isa.OpSize(insn.Op))
	base := memoryBaseSentinel
	var addr int64
	if isa.OpMode(insn.Op) == isa.ModeInd {
		addr = int64(base) + vm.Regs[insn.Dst()] + insn.Imm
	} else {
		addr = int64(base) + insn.Imm
	}
	buf, err := vm.resolve(addr, sz, false)
	if err != nil {
		return err
	}
	vm.Regs[0] = signExtendLoad(buf, isa.OpSize(insn.Op))
	return nil
}

func signExtendLoad(buf []byte, sz isa.Size) int64 {
	switch sz {
	case isa.SizeB:
		return int64(int8(buf[0]))
	case isa.SizeH:
		return int64(int16(binary.LittleEndian.Uint16(buf)))
	case isa.SizeW:
		return int64(int32(binary.LittleEndian.Uint32(buf)))
	case isa.SizeDW:
		return int64(binary.LittleEndian.Uint64(buf))
	default:
		return 0
	}
}

func putLE(buf []byte, v uint64, size int) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

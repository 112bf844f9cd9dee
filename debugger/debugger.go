// Package debugger implements the interactive bytecode-level debugger
// (SPEC_FULL.md §4.12): breakpoints and watchpoints keyed by word-pc,
// single-stepping, and a command history, wrapped around the reference
// interpreter so single-stepping always matches the VM's own semantics.
package debugger

import (
	"fmt"
	"strings"

	"github.com/ubpfvm/ubpfvm/disasm"
	"github.com/ubpfvm/ubpfvm/interp"
	"github.com/ubpfvm/ubpfvm/program"
)

// Debugger owns one interpreter instance and the breakpoint/watchpoint/
// history state layered on top of it. It never drives the JIT path: a
// single-stepping debugger needs the interpreter's per-instruction
// dispatch, not compiled native code.
type Debugger struct {
	VM          *interp.VM
	Seq         *program.Sequence
	wordIdx     *program.WordIndex
	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	History     *CommandHistory

	Running  bool
	LastStop string
	output   strings.Builder
}

// New constructs a Debugger bound to seq, with a fresh interpreter.
func New(seq *program.Sequence) *Debugger {
	return &Debugger{
		VM:          interp.NewVM(seq),
		Seq:         seq,
		wordIdx:     seq.BuildWordIndex(),
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(),
	}
}

// Step executes exactly one instruction and checks watchpoints afterward,
// reporting whether the VM halted (hit `exit`) this step.
func (d *Debugger) Step() (halted bool, err error) {
	insns := d.Seq.All()
	idx, ok := d.wordIdx.IndexAtWord(d.VM.PC)
	if !ok {
		return false, fmt.Errorf("pc %d is not a valid instruction boundary", d.VM.PC)
	}

	line := disasm.FormatOne(insns, idx)
	d.output.WriteString(fmt.Sprintf("%04d  %s\n", d.VM.PC, line))

	result, stepped, err := d.VM.Step()
	if err != nil {
		d.Running = false
		return false, err
	}

	if wp, hit := d.Watchpoints.CheckWatchpoints(d.VM); hit {
		d.LastStop = fmt.Sprintf("watchpoint %d (%s) changed to %d", wp.ID, wp.Expression, wp.LastValue)
	}

	if stepped {
		return false, nil
	}

	d.Running = false
	d.output.WriteString(fmt.Sprintf("program exited with r0=%d\n", result))
	return true, nil
}

// ShouldBreak reports whether execution should stop at the current pc
// because an enabled breakpoint is set there.
func (d *Debugger) ShouldBreak() (bool, string) {
	bp := d.Breakpoints.GetBreakpoint(d.VM.PC)
	if bp == nil || !bp.Enabled {
		return false, ""
	}
	hit := d.Breakpoints.ProcessHit(d.VM.PC)
	return true, fmt.Sprintf("breakpoint %d hit at pc %d (count %d)", hit.ID, hit.PC, hit.HitCount)
}

// Continue steps until a breakpoint fires, a watchpoint sees its value
// change, the program exits, or an error occurs.
func (d *Debugger) Continue() error {
	d.Running = true
	d.LastStop = ""
	for d.Running {
		halted, err := d.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
		if d.LastStop != "" {
			d.Running = false
			return nil
		}
		if hit, msg := d.ShouldBreak(); hit {
			d.LastStop = msg
			d.Running = false
			return nil
		}
	}
	return nil
}

// Reset restarts the bound program from its first instruction.
func (d *Debugger) Reset() {
	d.VM.Reset()
	d.Running = false
	d.LastStop = ""
	d.output.Reset()
}

// Output returns everything written to the debugger's transcript since the
// last call to Reset.
func (d *Debugger) Output() string {
	return d.output.String()
}

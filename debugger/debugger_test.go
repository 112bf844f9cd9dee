package debugger

import (
	"testing"

	"github.com/ubpfvm/ubpfvm/asm"
)

func mustDebugger(t *testing.T, src string) *Debugger {
	t.Helper()
	seq, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return New(seq)
}

func TestStepAdvancesPCAndLogsOutput(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 1\nmov64 r0, 2\nexit\n")

	halted, err := d.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if halted {
		t.Fatal("should not be halted after the first of three instructions")
	}
	if d.VM.Regs[0] != 1 {
		t.Errorf("r0 = %d, want 1", d.VM.Regs[0])
	}
	if d.Output() == "" {
		t.Error("Step should append a disassembly line to Output()")
	}
}

func TestStepReportsHaltOnExit(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 7\nexit\n")

	if halted, err := d.Step(); err != nil || halted {
		t.Fatalf("step 1: halted=%v err=%v", halted, err)
	}
	halted, err := d.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !halted {
		t.Fatal("expected halted=true after exit")
	}
	if d.Running {
		t.Error("Running should be false after the program exits")
	}
}

func TestShouldBreakFiresOnEnabledBreakpoint(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 1\nmov64 r0, 2\nexit\n")
	d.Breakpoints.AddBreakpoint(1, false, "")

	d.Step() // executes word 0, PC now at word 1
	hit, msg := d.ShouldBreak()
	if !hit {
		t.Fatal("expected ShouldBreak to report a hit at pc 1")
	}
	if msg == "" {
		t.Error("expected a non-empty stop message")
	}
}

func TestShouldBreakIgnoresDisabledBreakpoint(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 1\nmov64 r0, 2\nexit\n")
	bp := d.Breakpoints.AddBreakpoint(1, false, "")
	d.Breakpoints.DisableBreakpoint(bp.ID)

	d.Step()
	if hit, _ := d.ShouldBreak(); hit {
		t.Fatal("disabled breakpoint should not fire")
	}
}

func TestContinueStopsAtBreakpoint(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 1\nmov64 r0, 2\nmov64 r0, 3\nexit\n")
	d.Breakpoints.AddBreakpoint(2, false, "")

	if err := d.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if d.VM.PC != 2 {
		t.Errorf("PC = %d, want 2 (stopped at the breakpoint)", d.VM.PC)
	}
	if d.VM.Regs[0] != 2 {
		t.Errorf("r0 = %d, want 2", d.VM.Regs[0])
	}
}

func TestContinueRunsToCompletionWithNoBreakpoints(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 42\nexit\n")
	if err := d.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if d.VM.Regs[0] != 42 {
		t.Errorf("r0 = %d, want 42", d.VM.Regs[0])
	}
	if d.Running {
		t.Error("Running should be false once the program exits")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	d := mustDebugger(t, "mov64 r0, 9\nexit\n")
	d.Continue()
	if d.VM.Regs[0] != 9 {
		t.Fatalf("precondition failed: r0 = %d", d.VM.Regs[0])
	}

	d.Reset()
	if d.VM.Regs[0] != 0 {
		t.Errorf("r0 after Reset() = %d, want 0", d.VM.Regs[0])
	}
	if d.VM.PC != 0 {
		t.Errorf("PC after Reset() = %d, want 0", d.VM.PC)
	}
	if d.Output() != "" {
		t.Error("Output() should be cleared by Reset()")
	}
}

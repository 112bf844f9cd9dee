package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ubpfvm/ubpfvm/disasm"
)

// ExecuteCommand parses and runs one REPL line, returning text to print to
// the user. An empty cmdLine repeats the last history entry, matching the
// common gdb-style convenience of bare Enter continuing the last action.
func (d *Debugger) ExecuteCommand(cmdLine string) (string, error) {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		if last := d.History.GetLast(); last != "" {
			cmdLine = last
		} else {
			return "", nil
		}
	}
	d.History.Add(cmdLine)

	fields := strings.Fields(cmdLine)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "step", "s":
		return d.cmdStep()
	case "continue", "c":
		return d.cmdContinue()
	case "break", "b":
		return d.cmdBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "watch", "w":
		return d.cmdWatch(args)
	case "registers", "regs", "r":
		return d.VM.DumpRegisters(), nil
	case "disasm", "list", "l":
		return disasm.Format(d.Seq), nil
	case "mem", "x":
		return d.cmdMem(args)
	case "reset":
		d.Reset()
		return "reset to pc 0", nil
	default:
		return "", fmt.Errorf("unknown command: %s", cmd)
	}
}

func (d *Debugger) cmdStep() (string, error) {
	if !d.Running && d.VM.PC != 0 {
		return "", fmt.Errorf("program already exited; use reset")
	}
	d.Running = true
	halted, err := d.Step()
	if err != nil {
		return "", err
	}
	if halted {
		return fmt.Sprintf("exited with r0=%d", d.VM.Regs[0]), nil
	}
	return fmt.Sprintf("pc=%d", d.VM.PC), nil
}

func (d *Debugger) cmdContinue() (string, error) {
	if err := d.Continue(); err != nil {
		return "", err
	}
	if d.LastStop != "" {
		msg := d.LastStop
		d.LastStop = ""
		return msg, nil
	}
	return fmt.Sprintf("exited with r0=%d", d.VM.Regs[0]), nil
}

func (d *Debugger) cmdBreak(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: break <word-pc>")
	}
	pc, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid pc %q: %w", args[0], err)
	}
	bp := d.Breakpoints.AddBreakpoint(pc, false, "")
	return fmt.Sprintf("breakpoint %d set at pc %d", bp.ID, bp.PC), nil
}

func (d *Debugger) cmdDelete(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: delete <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("breakpoint %d deleted", id), nil
}

func (d *Debugger) cmdWatch(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: watch r<N> | watch @<offset>")
	}
	expr := args[0]
	if strings.HasPrefix(expr, "r") {
		n, err := strconv.Atoi(strings.TrimPrefix(expr, "r"))
		if err != nil || n < 0 || n > 10 {
			return "", fmt.Errorf("invalid register %q", expr)
		}
		wp := d.Watchpoints.AddWatchpoint(WatchReadWrite, expr, 0, true, n)
		_ = d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM)
		return fmt.Sprintf("watchpoint %d on %s", wp.ID, expr), nil
	}
	if strings.HasPrefix(expr, "@") {
		off, err := strconv.ParseInt(strings.TrimPrefix(expr, "@"), 0, 64)
		if err != nil {
			return "", fmt.Errorf("invalid offset %q", expr)
		}
		wp := d.Watchpoints.AddWatchpoint(WatchReadWrite, expr, off, false, 0)
		_ = d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM)
		return fmt.Sprintf("watchpoint %d on %s", wp.ID, expr), nil
	}
	return "", fmt.Errorf("unrecognized watch expression %q", expr)
}

func (d *Debugger) cmdMem(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: mem <offset> [count]")
	}
	off, err := strconv.ParseInt(args[0], 0, 64)
	if err != nil {
		return "", fmt.Errorf("invalid offset %q: %w", args[0], err)
	}
	count := int64(MemoryDisplayRows * MemoryDisplayColumns)
	if len(args) > 1 {
		count, err = strconv.ParseInt(args[1], 0, 64)
		if err != nil {
			return "", fmt.Errorf("invalid count %q: %w", args[1], err)
		}
	}
	end := off + count
	if off < 0 || end > int64(len(d.VM.Mem)) {
		return "", fmt.Errorf("range [%d,%d) out of bounds (mem len %d)", off, end, len(d.VM.Mem))
	}

	var sb strings.Builder
	buf := d.VM.Mem[off:end]
	for row := 0; row < len(buf); row += MemoryDisplayColumns {
		end := row + MemoryDisplayColumns
		if end > len(buf) {
			end = len(buf)
		}
		fmt.Fprintf(&sb, "%08x  ", off+int64(row))
		for _, b := range buf[row:end] {
			fmt.Fprintf(&sb, "%02x ", b)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

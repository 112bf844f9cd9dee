package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ubpfvm/ubpfvm/disasm"
)

// TUI is the full-screen text interface for the debugger (SPEC_FULL.md
// §4.12): a disassembly panel centered on pc, a register panel for r0-r10,
// a memory hexdump panel, a breakpoints/watchpoints panel, and a scrolling
// output log driven by one command input line.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	DisassemblyView *tview.TextView
	RegisterView    *tview.TextView
	MemoryView      *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	MemoryOffset int64
}

// NewTUI creates a new text user interface bound to dbg.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{
		Debugger: dbg,
		App:      tview.NewApplication(),
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()

	return t
}

func (t *TUI) initializeViews() {
	t.DisassemblyView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.DisassemblyView.SetBorder(true).SetTitle(" Disassembly ")

	t.RegisterView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.BreakpointsView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	t.OutputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().SetLabel("> ").SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

func (t *TUI) buildLayout() {
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.DisassemblyView, 0, 3, false).
		AddItem(t.MemoryView, 0, 2, false)

	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 9, 0, false).
		AddItem(t.BreakpointsView, 0, 1, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().AddPage("main", t.MainLayout, true, true)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			t.runCommand("continue")
			return nil
		case tcell.KeyF11:
			t.runCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := t.CommandInput.GetText()
	if cmd != "" {
		t.runCommand(cmd)
		t.CommandInput.SetText("")
	}
}

func (t *TUI) runCommand(cmd string) {
	defer func() {
		if r := recover(); r != nil {
			t.WriteOutput(fmt.Sprintf("[red]error:[white] command panicked: %v\n", r))
		}
	}()
	out, err := t.Debugger.ExecuteCommand(cmd)
	if err != nil {
		t.WriteOutput(fmt.Sprintf("[red]error:[white] %v\n", err))
	} else if out != "" {
		t.WriteOutput(out + "\n")
	}
	t.RefreshAll()
}

// WriteOutput appends text to the output log and scrolls to the bottom.
func (t *TUI) WriteOutput(text string) {
	fmt.Fprint(t.OutputView, text)
	t.OutputView.ScrollToEnd()
}

// RefreshAll redraws every panel from the current debugger state.
func (t *TUI) RefreshAll() {
	t.updateDisassemblyView()
	t.updateRegisterView()
	t.updateMemoryView()
	t.updateBreakpointsView()
	t.App.Draw()
}

func (t *TUI) updateDisassemblyView() {
	insns := t.Debugger.Seq.All()
	wordIdx := t.Debugger.Seq.BuildWordIndex()
	pc := t.Debugger.VM.PC
	curIdx, _ := wordIdx.IndexAtWord(pc)

	before, after := CodeContextLinesBeforeCompact, CodeContextLinesAfterCompact
	start := curIdx - before
	if start < 0 {
		start = 0
	}
	end := curIdx + after
	if end > len(insns) {
		end = len(insns)
	}

	var lines []string
	for i := start; i < end; i++ {
		word := wordIdx.StartWord(i)
		marker, color := "  ", "white"
		if i == curIdx {
			marker, color = "->", "yellow"
		}
		if t.Debugger.Breakpoints.HasBreakpoint(word) {
			marker = "* "
		}
		line := disasm.FormatOne(insns, i)
		lines = append(lines, fmt.Sprintf("[%s]%s %4d: %s[white]", color, marker, word, line))
	}
	t.DisassemblyView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) updateRegisterView() {
	vm := t.Debugger.VM
	var lines []string
	for row := 0; row < len(vm.Regs); row += RegisterGroupSize {
		end := row + RegisterGroupSize
		if end > len(vm.Regs) {
			end = len(vm.Regs)
		}
		var cols []string
		for i := row; i < end; i++ {
			cols = append(cols, fmt.Sprintf("r%-2d: 0x%016x", i, uint64(vm.Regs[i])))
		}
		lines = append(lines, strings.Join(cols, "  "))
	}
	lines = append(lines, fmt.Sprintf("pc: %d", vm.PC))
	t.RegisterView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) updateMemoryView() {
	vm := t.Debugger.VM
	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]offset: 0x%x[white]", t.MemoryOffset))

	end := t.MemoryOffset + MemoryDisplayRows*MemoryDisplayColumns
	if end > int64(len(vm.Mem)) {
		end = int64(len(vm.Mem))
	}
	for row := t.MemoryOffset; row < end; row += MemoryDisplayColumns {
		rowEnd := row + MemoryDisplayColumns
		if rowEnd > end {
			rowEnd = end
		}
		var hex []string
		var ascii []byte
		for _, b := range vm.Mem[row:rowEnd] {
			hex = append(hex, fmt.Sprintf("%02x", b))
			if b >= 32 && b < 127 {
				ascii = append(ascii, b)
			} else {
				ascii = append(ascii, '.')
			}
		}
		lines = append(lines, fmt.Sprintf("0x%08x: %s  %s", row, strings.Join(hex, " "), string(ascii)))
	}
	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) updateBreakpointsView() {
	var lines []string

	bps := t.Debugger.Breakpoints.GetAllBreakpoints()
	if len(bps) == 0 {
		lines = append(lines, "[yellow]no breakpoints[white]")
	}
	for _, bp := range bps {
		status, color := "enabled", "green"
		if !bp.Enabled {
			status, color = "disabled", "red"
		}
		lines = append(lines, fmt.Sprintf("  %d: [%s]%s[white] pc=%d (hits: %d)", bp.ID, color, status, bp.PC, bp.HitCount))
	}

	lines = append(lines, "")

	wps := t.Debugger.Watchpoints.GetAllWatchpoints()
	if len(wps) == 0 {
		lines = append(lines, "[yellow]no watchpoints[white]")
	}
	for _, wp := range wps {
		lines = append(lines, fmt.Sprintf("  %d: %s = %d", wp.ID, wp.Expression, wp.LastValue))
	}

	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

// Run starts the TUI event loop.
func (t *TUI) Run() error {
	t.RefreshAll()
	t.WriteOutput("[green]ubpfvm debugger[white]\n")
	t.WriteOutput("F5 continue, F11 step, ctrl-c quit\n\n")
	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

// Stop halts the TUI event loop.
func (t *TUI) Stop() {
	t.App.Stop()
}

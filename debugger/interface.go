package debugger

import (
	"bufio"
	"fmt"
	"io"
)

// RunCLI drives dbg from a line-oriented REPL on r/w, for terminals that
// can't host the full tview TUI (SPEC_FULL.md §4.12).
func RunCLI(dbg *Debugger, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	fmt.Fprintln(w, "ubpfvm-dbg: type 'help' for commands, 'quit' to exit")

	for {
		fmt.Fprint(w, "(ubpfvm-dbg) ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		switch line {
		case "quit", "q", "exit":
			return nil
		case "help", "h":
			fmt.Fprintln(w, cliHelp)
			continue
		}

		out, err := dbg.ExecuteCommand(line)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
}

const cliHelp = `commands:
  step (s)             execute one instruction
  continue (c)         run until a breakpoint or exit
  break (b) <pc>        set a breakpoint at a word-pc
  delete (d) <id>       remove breakpoint <id>
  watch (w) r<N>        break when register N changes
  watch (w) @<offset>   break when the 8 bytes at <offset> change
  registers (r)         dump r0..r10 and pc
  disasm (l)            list the whole program
  mem (x) <off> [n]     hexdump n bytes of guest memory from <off>
  reset                 restart the program from pc 0
  quit (q)              exit the debugger`

// RunTUI drives dbg through the full-screen text interface.
func RunTUI(dbg *Debugger) error {
	return NewTUI(dbg).Run()
}

// Command ubpfvm is the CLI entry point (SPEC_FULL.md §4.11): assemble,
// disassemble, run (interpreted or JIT), and extract a function's byte
// range from an ELF object.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/ubpfvm/ubpfvm/asm"
	"github.com/ubpfvm/ubpfvm/config"
	"github.com/ubpfvm/ubpfvm/debugger"
	"github.com/ubpfvm/ubpfvm/disasm"
	"github.com/ubpfvm/ubpfvm/elfload"
	"github.com/ubpfvm/ubpfvm/program"
	"github.com/ubpfvm/ubpfvm/vm"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	debugMode := flag.Bool("d", false, "launch the interactive TUI debugger instead of running headlessly")
	flag.BoolVar(debugMode, "debug", false, "launch the interactive TUI debugger instead of running headlessly")
	useJIT := flag.Bool("jit", false, "execute via the x86-64 JIT translator instead of the interpreter")
	memoryFile := flag.String("memory", "", "path to a file whose contents are installed as guest memory")
	configPath := flag.String("config", "", "path to a TOML config file (default: per-OS config directory)")
	showVersion := flag.Bool("version", false, "print version information and exit")

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("ubpfvm %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ubpfvm: loading config: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "run":
		err = runCommand(rest, cfg, *useJIT, *memoryFile, *debugMode)
	case "asm":
		err = asmCommand(rest)
	case "disasm":
		err = disasmCommand(rest)
	case "elf-extract":
		err = elfExtractCommand(rest)
	default:
		fmt.Fprintf(os.Stderr, "ubpfvm: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ubpfvm: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: ubpfvm [-d|--debug] [-jit] [-memory file] [-config path] <command> <args>

commands:
  run <file>               assemble-or-decode <file> and execute it
  asm <file>                assemble text to packed binary, to stdout
  disasm <file>             decode packed binary to text, to stdout
  elf-extract <elf> <func>  print the byte range of <func> in <elf>`)
}

func loadSequence(path string) (*program.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if seq, err := program.Decode(data); err == nil {
		return seq, nil
	}
	return asm.Assemble(string(data))
}

func runCommand(args []string, cfg *config.Config, useJIT bool, memoryFile string, debug bool) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ubpfvm run <file>")
	}

	seq, err := loadSequence(args[0])
	if err != nil {
		return err
	}

	if debug {
		dbg := debugger.New(seq)
		if memoryFile != "" {
			data, err := os.ReadFile(memoryFile)
			if err != nil {
				return fmt.Errorf("reading memory file: %w", err)
			}
			dbg.VM.SetMemory(0, data)
		}
		return debugger.RunTUI(dbg)
	}

	machine := vm.New(seq)
	machine.Configure(cfg.VM.MaxInstructions, cfg.VM.BoundsCheck, cfg.VM.StackSize)

	if memoryFile != "" {
		data, err := os.ReadFile(memoryFile)
		if err != nil {
			return fmt.Errorf("reading memory file: %w", err)
		}
		if err := machine.SetMemory(0, data); err != nil {
			return fmt.Errorf("installing guest memory: %w", err)
		}
	}

	result, err := machine.Run(useJIT || cfg.JIT.Enabled)
	if err != nil {
		fmt.Fprintln(os.Stderr, machine.Interp().DumpRegisters())
		return err
	}
	fmt.Printf("r0 = %d\n", result)
	return nil
}

func asmCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ubpfvm asm <file>")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	seq, err := asm.Assemble(string(src))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(program.Encode(seq))
	return err
}

func disasmCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ubpfvm disasm <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	seq, err := program.Decode(data)
	if err != nil {
		return err
	}
	fmt.Print(disasm.Format(seq))
	return nil
}

func elfExtractCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: ubpfvm elf-extract <elf> <func>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := elfload.LocateFunction(f, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d bytes\n%s\n", args[1], len(data), hex.EncodeToString(data))
	return nil
}

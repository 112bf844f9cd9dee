// Package elfload locates a named function's bytes inside an ELF object,
// for the `elf-extract` CLI verb and any caller that wants to pull a BPF
// program body out of a compiled ELF section (SPEC_FULL.md §4.9).
package elfload

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// Error kinds for ELF lookup failures (SPEC_FULL.md §4.9).
var (
	ErrNoTextSection   = errors.New("elfload: no executable section found")
	ErrSectionNotFound = errors.New("elfload: named section not found")
	ErrFunctionNotFound = errors.New("elfload: function symbol not found")
)

// LocateFunction finds the symbol named fn in r's symbol table and returns
// its byte range within the section that defines it, read eagerly into a
// buffer the caller owns. It does not assume the object was built for any
// particular guest architecture: only the symbol table and section data are
// inspected, matching how `bpftool`-style tooling extracts pre-compiled
// programs from object files.
func LocateFunction(r io.ReaderAt, fn string) ([]byte, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("elfload: parse ELF: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("elfload: read symbol table: %w", err)
	}

	for _, sym := range syms {
		if sym.Name != fn {
			continue
		}
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		if int(sym.Section) >= len(f.Sections) {
			continue
		}
		sec := f.Sections[sym.Section]
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("elfload: read section %q: %w", sec.Name, err)
		}
		start := sym.Value - sec.Addr
		end := start + sym.Size
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: symbol %q extends past section %q", ErrFunctionNotFound, fn, sec.Name)
		}
		return data[start:end], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, fn)
}

// LocateSection returns the raw bytes of the named section, for callers
// that know their program occupies an entire custom section (e.g. `.text`
// or a convention like `prog/xdp`) rather than a single named symbol.
func LocateSection(r io.ReaderAt, name string) ([]byte, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("elfload: parse ELF: %w", err)
	}
	defer f.Close()

	sec := f.Section(name)
	if sec == nil {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfload: read section %q: %w", name, err)
	}
	return data, nil
}

// LocateText returns the bytes of the first SHT_PROGBITS+SHF_EXECINSTR
// section, the common case for a minimal object file with a single
// unnamed program blob.
func LocateText(r io.ReaderAt) ([]byte, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("elfload: parse ELF: %w", err)
	}
	defer f.Close()

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS {
			continue
		}
		if sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("elfload: read section %q: %w", sec.Name, err)
		}
		return data, nil
	}
	return nil, ErrNoTextSection
}

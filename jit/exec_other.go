//go:build !amd64

package jit

import (
	"errors"

	"github.com/ubpfvm/ubpfvm/program"
)

// ErrUnsupportedArch is returned by Compile on any host the JIT does not
// target (spec.md Non-goals: "non-x86-64 JIT targets").
var ErrUnsupportedArch = errors.New("jit: native execution is only supported on amd64")

// CompiledProgram is an unused placeholder so callers can type-check
// against this type on non-amd64 builds; Compile always fails before one
// is ever produced.
type CompiledProgram struct{}

func Compile(seq *program.Sequence) (*CompiledProgram, error) {
	return nil, ErrUnsupportedArch
}

func (c *CompiledProgram) Run(mem []byte) int64 { return 0 }

func (c *CompiledProgram) Close() error { return nil }

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubpfvm/ubpfvm/asm"
)

// SetMemory grows the guest buffer on demand rather than rejecting a valid
// write, so these cover the validation spec.md §10 calls out: a negative
// offset is rejected, everything else is accepted and grows the buffer.
func TestSetMemoryRejectsNegativeOffset(t *testing.T) {
	seq, err := asm.Assemble("exit\n")
	require.NoError(t, err)
	machine := New(seq)

	err = machine.SetMemory(-1, []byte{1, 2, 3})
	assert.Error(t, err, "a negative memory offset must be rejected")
}

func TestSetMemoryGrowsBufferToFit(t *testing.T) {
	seq, err := asm.Assemble("exit\n")
	require.NoError(t, err)
	machine := New(seq)

	data := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	require.NoError(t, machine.SetMemory(100, data))

	got := machine.Interp().Mem[100:104]
	assert.Equal(t, data, got, "SetMemory should place data at the requested offset")
}

func TestOutOfBoundsStackReadReturnsMemOutOfBoundError(t *testing.T) {
	seq, err := asm.Assemble("ldxdw r0, [r10+32767]\nexit\n")
	require.NoError(t, err)
	machine := New(seq)

	_, err = machine.Run(false)
	require.Error(t, err, "reading far past the stack segment should fail")
}

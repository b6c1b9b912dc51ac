package common

import (
	"testing"

	"github.com/cjo5/llvmee/ee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmitKind(t *testing.T) {
	tests := []struct {
		in   string
		want EmitKind
	}{
		{"", EmitRun},
		{"run", EmitRun},
		{"asm", EmitAsm},
		{"S", EmitAsm},
		{"obj", EmitObj},
	}
	for _, tt := range tests {
		got, err := ParseEmitKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseEmitKind("exe")
	assert.Error(t, err)
}

func TestMachineOptions(t *testing.T) {
	c := NewToolConfig("/tmp")
	c.Triple = "x86_64-unknown-linux-gnu"
	c.CodeModel = "large"
	c.Reloc = "pic"
	c.Opt = 1

	o, err := c.MachineOptions()
	require.NoError(t, err)
	assert.Equal(t, "x86_64-unknown-linux-gnu", o.Triple)
	assert.Equal(t, ee.CodeModelLarge, o.CodeModel)
	assert.Equal(t, ee.RelocPIC, o.Reloc)
	assert.Equal(t, ee.OptLess, o.Opt)

	c.Opt = 5
	_, err = c.MachineOptions()
	assert.ErrorIs(t, err, ee.ErrInvalidOptLevel)

	c.Opt = 2
	c.Reloc = "sideways"
	_, err = c.MachineOptions()
	assert.Error(t, err)
}

func TestToolConfigAbs(t *testing.T) {
	c := NewToolConfig("/work")
	assert.Equal(t, "/work/a.ll", c.Abs("a.ll"))
	assert.Equal(t, "/abs/b.ll", c.Abs("/abs/b.ll"))
}

package ee

import (
	"bytes"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostInfo(t *testing.T) {
	assert.NotEmpty(t, DefaultTriple())
	assert.NotEmpty(t, HostCPUName())
	assert.NotEmpty(t, NormalizeTriple(DefaultTriple()))
}

func TestNewTargetMachineDefaults(t *testing.T) {
	tm, err := NewTargetMachine(DefaultMachineOptions())
	require.NoError(t, err)
	defer tm.Dispose()

	assert.Equal(t, DefaultTriple(), tm.Triple())
	assert.Equal(t, HostCPUName(), tm.CPU())
	assert.Empty(t, tm.FeatureString())
	assert.NotEmpty(t, tm.TargetName())
	assert.NotEmpty(t, tm.TargetShortDescription())
	assert.Equal(t, OptDefault, tm.Opt())
	assert.Equal(t, CodeModelDefault, tm.CodeModel())
	assert.Equal(t, RelocDefault, tm.RelocModel())
	assert.Equal(t, LittleEndian, tm.ByteOrder())

	td := tm.TargetData()
	defer td.Dispose()
	assert.NotEmpty(t, td.String())
}

func TestNewTargetMachineErrors(t *testing.T) {
	o := DefaultMachineOptions()
	o.Triple = "nonsense-unknown-nowhere"
	_, err := NewTargetMachine(o)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	o = DefaultMachineOptions()
	o.Opt = OptLevel(-1)
	_, err = NewTargetMachine(o)
	assert.ErrorIs(t, err, ErrInvalidOptLevel)

	_, err = LookupTargetMachine("x86-64", o)
	assert.ErrorIs(t, err, ErrInvalidOptLevel)
}

func TestLookupTargetMachine(t *testing.T) {
	host, err := NewTargetMachine(DefaultMachineOptions())
	require.NoError(t, err)
	defer host.Dispose()

	tm, err := LookupTargetMachine(host.TargetName(), DefaultMachineOptions())
	require.NoError(t, err)
	defer tm.Dispose()

	assert.Equal(t, host.TargetName(), tm.TargetName())
	assert.Empty(t, tm.CPU())

	_, err = LookupTargetMachine("no-such-arch", DefaultMachineOptions())
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestLookupTargetMachineExplicitTriple(t *testing.T) {
	InitializeAllTargets()

	o := DefaultMachineOptions()
	o.Triple = "x86_64-apple-darwin"
	tm, err := LookupTargetMachine("arm64", o)
	require.NoError(t, err)
	defer tm.Dispose()

	assert.Equal(t, "aarch64", tm.TargetName())
	assert.Equal(t, "aarch64-apple-darwin", tm.Triple())
}

func TestArchTriple(t *testing.T) {
	tests := []struct {
		arch, triple, want string
	}{
		{"x86-64", "aarch64-unknown-linux-gnu", "x86_64-unknown-linux-gnu"},
		{"aarch64", "x86_64-apple-darwin", "aarch64-apple-darwin"},
		{"arm64", "x86_64-pc-linux", "aarch64-pc-linux"},
		{"riscv64", "", "riscv64"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, archTriple(tt.arch, tt.triple), tt.arch)
	}
}

func TestEmit(t *testing.T) {
	tm, err := NewTargetMachine(DefaultMachineOptions())
	require.NoError(t, err)
	defer tm.Dispose()

	m, _ := squareModule("emit")
	defer m.Dispose()

	tm.SetAsmVerbosity(true)
	asm, err := tm.EmitAssembly(m)
	require.NoError(t, err)
	assert.Contains(t, asm, "square")

	obj, err := tm.EmitObject(m)
	require.NoError(t, err)
	assert.NotEmpty(t, obj)

	path := t.TempDir() + "/square.o"
	require.NoError(t, tm.EmitToFile(m, path, ObjectFile))
	assert.FileExists(t, path)
}

func TestInitializeTarget(t *testing.T) {
	err := InitializeTarget("NoSuchTarget")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	var name string
	switch runtime.GOARCH {
	case "amd64", "386":
		name = "X86"
	case "arm64":
		name = "AArch64"
	default:
		t.Skipf("no target name known for %s", runtime.GOARCH)
	}

	require.NoError(t, InitializeTarget(name))
	require.NoError(t, InitializeTarget(name))
}

func TestRegisteredTargets(t *testing.T) {
	host, err := NewTargetMachine(DefaultMachineOptions())
	require.NoError(t, err)
	defer host.Dispose()

	var found *TargetInfo
	infos := RegisteredTargets()
	for i := range infos {
		if infos[i].Name == host.TargetName() {
			found = &infos[i]
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.HasTargetMachine)
	assert.True(t, found.HasJIT)

	var buf bytes.Buffer
	require.NoError(t, PrintRegisteredTargets(&buf))
	assert.Contains(t, buf.String(), "Registered Targets:")
	assert.Contains(t, buf.String(), host.TargetName()+" - ")
}

func TestPrintRegisteredTargetsSorted(t *testing.T) {
	InitializeAllTargets()

	var buf bytes.Buffer
	require.NoError(t, PrintRegisteredTargets(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Greater(t, len(lines), 2)

	var names []string
	for _, line := range lines[1:] {
		name, _, ok := strings.Cut(strings.TrimSpace(line), " - ")
		require.True(t, ok, line)
		names = append(names, strings.TrimSpace(name))
	}
	assert.True(t, sort.StringsAreSorted(names), names)
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cjo5/llvmee/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const argcIR = `define i32 @main(i32 %argc, ptr %argv) {
  %r = add i32 %argc, 40
  ret i32 %r
}
`

func TestMain(m *testing.M) {
	common.SetColor(false)
	os.Exit(m.Run())
}

func writeIR(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestBuildRun(t *testing.T) {
	for _, interp := range []bool{false, true} {
		dir := t.TempDir()
		path := writeIR(t, dir, "main.ll", argcIR)

		config := common.NewToolConfig(dir)
		config.Interp = interp
		errs := &common.ErrorList{}

		code := build([]string{path}, []string{"x"}, config, errs)
		require.False(t, errs.IsError(), errs.Error())
		assert.Equal(t, 42, code, "interp=%v", interp)
	}
}

func TestBuildRunLinked(t *testing.T) {
	dir := t.TempDir()
	entry := writeIR(t, dir, "main.ll", `declare i32 @seven()

define i32 @main() {
  %r = call i32 @seven()
  ret i32 %r
}
`)
	seven := writeIR(t, dir, "seven.ll", `define i32 @seven() {
  ret i32 7
}
`)

	errs := &common.ErrorList{}
	code := build([]string{entry, seven}, nil, common.NewToolConfig(dir), errs)
	require.False(t, errs.IsError(), errs.Error())
	assert.Equal(t, 7, code)
}

func TestBuildEmit(t *testing.T) {
	dir := t.TempDir()
	path := writeIR(t, dir, "main.ll", argcIR)

	config := common.NewToolConfig(dir)
	config.Emit = "asm"
	config.Output = filepath.Join(dir, "main.s")
	errs := &common.ErrorList{}
	require.Equal(t, 0, build([]string{path}, nil, config, errs), errs.Error())

	asm, err := os.ReadFile(config.Output)
	require.NoError(t, err)
	assert.Contains(t, string(asm), "main")

	config.Emit = "obj"
	config.Output = filepath.Join(dir, "main.o")
	require.Equal(t, 0, build([]string{path}, nil, config, errs), errs.Error())

	obj, err := os.ReadFile(config.Output)
	require.NoError(t, err)
	assert.NotEmpty(t, obj)
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeIR(t, dir, "main.ll", argcIR)

	config := common.NewToolConfig(dir)
	config.Entry = "start"
	errs := &common.ErrorList{}
	assert.Equal(t, 1, build([]string{path}, nil, config, errs))
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, `entry function "start" not found`, errs.Errors[0].Msg)

	config = common.NewToolConfig(dir)
	config.Emit = "exe"
	errs = &common.ErrorList{}
	assert.Equal(t, 1, build([]string{path}, nil, config, errs))
	assert.True(t, errs.IsError())

	bad := writeIR(t, dir, "bad.ll", "define i32 @main( {\n")
	errs = &common.ErrorList{}
	assert.Equal(t, 1, build([]string{bad}, nil, common.NewToolConfig(dir), errs))
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, bad, errs.Errors[0].Pos.Filename)
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.s")
	require.NoError(t, writeOutput(path, common.EmitAsm, []byte("nop\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nop\n", string(data))

	err = writeOutput(filepath.Join(t.TempDir(), "missing", "out.o"), common.EmitObj, nil)
	assert.Error(t, err)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cjo5/llvmee/ee"
	"github.com/cjo5/llvmee/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	common.SetColor(false)
	if err := ee.InitializeNativeTarget(); err != nil {
		fmt.Fprintln(os.Stderr, "native target:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeTest(t *testing.T, name string, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestAddPatternParts(t *testing.T) {
	pattern := &testOutputPattern{}
	require.NoError(t, addPatternParts("mov <re>[wx]0</re>, #42", common.NoPosition, pattern))
	require.Len(t, pattern.parts, 3)
	assert.Equal(t, "mov ", pattern.parts[0].text)
	assert.NotNil(t, pattern.parts[1].regex)
	assert.Equal(t, ", #42", pattern.parts[2].text)

	assert.True(t, matchPattern(pattern, "mov w0, #42"))
	assert.False(t, matchPattern(pattern, "mov w0, #43"))
	assert.True(t, pattern.regexp().MatchString("\tmov x0, #42 // comment"))

	err := addPatternParts("<re>[</re>", common.NoPosition, &testOutputPattern{})
	assert.Error(t, err)
}

func TestParseTestDescription(t *testing.T) {
	src := `; engine: interp
define i32 @main() {
  ret i32 %x ; expect-error: <re>.*undefined.*</re>
}
; expect-exit: 42
; expect-asm: main:
; expect-error: function main not found
`
	result := &testResult{status: statusSuccess}
	desc := parseTestDescription("t.ll", src, result)
	require.Equal(t, statusSuccess, result.status, result.reason)

	assert.Equal(t, ee.EngineInterpreter, desc.engine)
	require.Len(t, desc.errors, 2)
	require.Len(t, desc.exit, 1)
	require.Len(t, desc.asm, 1)
	assert.True(t, desc.runs())

	assert.Equal(t, 3, desc.errors[0].pos.Line)
	assert.True(t, matchPattern(desc.errors[0], "error(3): use of undefined value '%x'"))
	assert.True(t, matchPattern(desc.errors[1], "error: function main not found"))
	assert.True(t, matchPattern(desc.exit[0], "42"))
}

func TestParseTestDescriptionInvalid(t *testing.T) {
	for _, src := range []string{
		"; engine: vm\n",
		"; expect-foo: 1\n",
		"; expect-exit 1\n",
	} {
		result := &testResult{status: statusSuccess}
		parseTestDescription("t.ll", src, result)
		assert.Equal(t, statusInvalid, result.status, src)
		assert.NotEmpty(t, result.reason)
	}
}

func TestCompareOutput(t *testing.T) {
	pattern := func(s string) *testOutputPattern {
		p := &testOutputPattern{text: s}
		require.NoError(t, addPatternParts(s, common.NoPosition, p))
		return p
	}
	output := func(s string) *testOutput {
		return &testOutput{pos: common.Position{Line: 1, Column: 1}, text: s}
	}

	result := &testResult{}
	compareOutput([]*testOutputPattern{pattern("42")}, []*testOutput{output("42")}, result)
	assert.Empty(t, result.reason)

	result = &testResult{}
	compareOutput([]*testOutputPattern{pattern("42")}, []*testOutput{output("1")}, result)
	assert.Len(t, result.reason, 2)

	result = &testResult{}
	compareOutput(nil, []*testOutput{output("1")}, result)
	assert.Equal(t, []string{"got:", "[1] (1:1): '1'"}, result.reason)

	result = &testResult{}
	compareOutput([]*testOutputPattern{pattern("7")}, nil, result)
	assert.Equal(t, []string{"expected:", "[1] (-): '7'"}, result.reason)
}

func TestMatchInOrder(t *testing.T) {
	var asm []*testOutput
	addAsmOutput("f:\n\tmovl\t$1, %eax\n\n\tretq\ng:\n", &asm)
	require.Len(t, asm, 4)
	assert.Equal(t, "movl $1, %eax", asm[1].text)

	pattern := func(s string) *testOutputPattern {
		p := &testOutputPattern{text: s}
		require.NoError(t, addPatternParts(s, common.NoPosition, p))
		return p
	}

	result := &testResult{}
	matchInOrder([]*testOutputPattern{pattern("f:"), pattern("ret"), pattern("g:")}, asm, result)
	assert.Empty(t, result.reason)

	result = &testResult{}
	matchInOrder([]*testOutputPattern{pattern("g:"), pattern("f:")}, asm, result)
	assert.Len(t, result.reason, 1)
}

func TestTestNames(t *testing.T) {
	assert.Equal(t, filepath.Join("basic", "add"), toTestName("basic", "add.ll"))
	assert.Equal(t, " 3/10 basic/add", toTestLine("basic/add", 3, 10))
	assert.Equal(t, "12/10 x", toTestLine("x", 12, 10))
}

func TestRunTest(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		status status
	}{
		{
			name: "exit.ll",
			src: `; engine: interp
define i32 @main() {
  ret i32 42
}
; expect-exit: 42
`,
			status: statusSuccess,
		},
		{
			name: "jit.ll",
			src: `; engine: jit
define i32 @main() {
  ret i32 7
}
; expect-exit: <re>[0-9]+</re>
`,
			status: statusSuccess,
		},
		{
			name: "wrongexit.ll",
			src: `define i32 @main() {
  ret i32 42
}
; expect-exit: 1
`,
			status: statusFail,
		},
		{
			name: "asm.ll",
			src: `define i32 @answer() {
  ret i32 42
}
; expect-asm: answer:
; expect-asm: 42
`,
			status: statusSuccess,
		},
		{
			name: "parse.ll",
			src: `define i32 @main() {
  ret i32 %missing ; expect-error: <re>.*undefined value.*</re>
}
`,
			status: statusSuccess,
		},
		{
			name: "nomain.ll",
			src: `; expect-error: function main not found
define i32 @other() {
  ret i32 0
}
`,
			status: statusSuccess,
		},
		{
			name:   "invalid.ll",
			src:    "; expect-bogus: 1\n",
			status: statusInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTest(t, tt.name, tt.src)
			runner := &testRunner{cwd: filepath.Dir(path)}
			result := runner.runTest(toTestName("", tt.name), "", path, nil)
			assert.Equal(t, tt.status, result.status, result.reason)
		})
	}
}

func TestRunTestWithModules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.ll"), []byte(`declare i32 @helper()

define i32 @main() {
  %r = call i32 @helper()
  ret i32 %r
}
; expect-exit: 5
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.ll"), []byte(`define i32 @helper() {
  ret i32 5
}
`), 0o644))

	runner := &testRunner{cwd: dir, baseDir: dir}
	result := runner.runTest("main", "", "main.ll", []string{"helper.ll"})
	assert.Equal(t, statusSuccess, result.status, result.reason)
}

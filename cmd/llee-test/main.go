package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cjo5/llvmee/ee"
	"github.com/cjo5/llvmee/internal/common"
	"github.com/cjo5/llvmee/internal/irload"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	var manifest string
	var explicitTests string
	var verbose bool

	flag.StringVar(&manifest, "manifest", "", "Test manifest")
	flag.StringVar(&explicitTests, "test", "", "Explicit tests -- remaining arguments are interpreted as modules")
	flag.BoolVar(&verbose, "verbose", false, "Print engine and codegen info")
	flag.Parse()

	config := common.NewToolConfig(cwd)
	config.Verbose = verbose
	logger, err := config.NewLogger()
	if err != nil {
		abort(err)
	}
	defer logger.Sync()
	ee.SetLogger(logger)

	if err := ee.InitializeNativeTarget(); err != nil {
		abort(err)
	}

	var groups []*testGroup
	tester := &testRunner{cwd: cwd}

	if len(manifest) > 0 {
		groups = readTestManifest(manifest)
		tester.baseDir = filepath.Dir(manifest)
	} else if len(explicitTests) > 0 {
		groups = createTestGroups(strings.Fields(explicitTests))
		tester.defaultModules = flag.Args()
	} else {
		groups = createTestGroups(flag.Args())
	}

	tester.total = countTests(groups)
	tester.runTestGroups(groups)
	fmt.Printf("\n%d/%d test(s) %s (%d %s, %d %s, and %d %s)\n",
		tester.success, tester.total, statusSuccess,
		tester.fail, statusFail,
		tester.invalid, statusInvalid,
		tester.skip, statusSkip,
	)

	if tester.fail > 0 || tester.invalid > 0 {
		os.Exit(1)
	}
}

type testRunner struct {
	cwd            string
	baseDir        string
	defaultModules []string

	// stats
	total   int
	success int
	skip    int
	fail    int
	invalid int
}

type testGroup struct {
	Disable bool
	Dir     string
	Modules []string
	Tests   []string
}

type testResult struct {
	status status
	reason []string
}

func (r *testResult) addReason(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.reason = append(r.reason, msg)
}

// testDescription is what a test file asks for in its comments.
type testDescription struct {
	engine ee.EngineKind
	errors []*testOutputPattern
	exit   []*testOutputPattern
	asm    []*testOutputPattern
}

// runs reports whether main should be executed. Tests that only check
// assembly don't need an entry point.
func (d *testDescription) runs() bool {
	return len(d.exit) > 0 || len(d.asm) == 0
}

type testOutput struct {
	pos  common.Position
	text string
}

type testOutputPattern struct {
	pos   common.Position
	text  string
	parts []patternPart
}

func (t *testOutputPattern) addPart(text string, regex *regexp.Regexp) {
	part := patternPart{
		text:  text,
		regex: regex,
	}
	t.parts = append(t.parts, part)
}

// regexp joins the parts into one unanchored expression.
func (t *testOutputPattern) regexp() *regexp.Regexp {
	var buf strings.Builder
	for _, part := range t.parts {
		if part.regex != nil {
			buf.WriteString("(?:" + part.regex.String() + ")")
		} else {
			buf.WriteString(regexp.QuoteMeta(part.text))
		}
	}
	return regexp.MustCompile(buf.String())
}

type patternPart struct {
	text  string
	regex *regexp.Regexp
}

type status int

const (
	statusSuccess status = iota
	statusFail
	statusSkip
	statusInvalid
)

func (t status) String() string {
	switch t {
	case statusSuccess:
		return common.BoldGreen("passed")
	case statusFail:
		return common.BoldRed("failed")
	case statusSkip:
		return common.BoldPurple("disabled")
	case statusInvalid:
		return common.BoldRed("invalid")
	default:
		return "-"
	}
}

func abort(err error) {
	fmt.Printf("%s: %s\n", common.BoldRed(common.ErrorMsg.String()), err)
	os.Exit(1)
}

func readTestManifest(manifest string) []*testGroup {
	bytes, err := os.ReadFile(manifest)
	if err != nil {
		abort(err)
	}
	var groups []*testGroup
	if err := json.Unmarshal(bytes, &groups); err != nil {
		abort(errors.Wrap(err, "manifest %s", manifest))
	}
	return groups
}

func createTestGroups(testFiles []string) []*testGroup {
	var groups []*testGroup
	for _, testFile := range testFiles {
		groups = append(groups, &testGroup{Tests: []string{testFile}})
	}
	return groups
}

func countTests(groups []*testGroup) int {
	count := 0
	for _, group := range groups {
		count += len(group.Tests)
	}
	return count
}

func toTestName(testDir string, testFile string) string {
	ext := filepath.Ext(testFile)
	baseName := filepath.Base(testFile)
	baseName = baseName[:len(baseName)-len(ext)]
	return filepath.Join(testDir, baseName)
}

func toTestLine(name string, index int, count int) string {
	countStr := strconv.Itoa(count)
	indexStr := strconv.Itoa(index)
	pad := len(countStr) - len(indexStr)
	if pad < 0 {
		pad = 0
	}
	return fmt.Sprintf("%s%s/%s %s", strings.Repeat(" ", pad), indexStr, countStr, name)
}

func (t *testRunner) runTestGroups(groups []*testGroup) {
	testIndex := 1
	for groupIndex, group := range groups {
		testDir := group.Dir
		status := statusSuccess

		if group.Disable {
			status = statusSkip
		} else if len(group.Tests) == 0 {
			status = statusInvalid
		}

		if status != statusSuccess {
			if len(group.Tests) > 0 {
				for _, testFile := range group.Tests {
					line := toTestLine(toTestName(testDir, testFile), testIndex, t.total)
					fmt.Printf("test %s ... %s\n", line, status)
					t.updateStats(status)
					testIndex++
				}
			} else {
				line := toTestLine(testDir, groupIndex+1, len(groups))
				fmt.Printf("group %s ... %s\n", line, status)
				t.updateStats(status)
			}
			continue
		}

		for _, testFile := range group.Tests {
			testName := toTestName(testDir, testFile)
			line := toTestLine(testName, testIndex, t.total)
			fmt.Printf("test %s ... ", line)

			result := t.runTest(testName, testDir, testFile, group.Modules)
			t.updateStats(result.status)
			testIndex++

			fmt.Printf("%s\n", result.status)
			for _, txt := range result.reason {
				fmt.Printf("  >> %s\n", txt)
			}
		}
	}
}

func (t *testRunner) updateStats(res status) {
	switch res {
	case statusSuccess:
		t.success++
	case statusFail:
		t.fail++
	case statusSkip:
		t.skip++
	case statusInvalid:
		t.invalid++
	}
}

func (t *testRunner) testFilenames(testDir string, testFile string, testModules []string) []string {
	var filenames []string
	for _, name := range append(append([]string{testFile}, testModules...), t.defaultModules...) {
		filename := filepath.Join(t.baseDir, testDir, name)
		filenames = append(filenames, common.Abs(t.cwd, filename))
	}
	return filenames
}

func (t *testRunner) runTest(testName string, testDir string, testFile string, testModules []string) *testResult {
	filenames := t.testFilenames(testDir, testFile, testModules)
	result := &testResult{status: statusSuccess}

	src, err := os.ReadFile(filenames[0])
	if err != nil {
		result.status = statusInvalid
		result.addReason("%s", err)
		return result
	}

	desc := parseTestDescription(filenames[0], string(src), result)
	if result.status != statusSuccess {
		return result
	}

	// Each test gets its own context so types and metadata don't leak
	// between tests.
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	errs := &common.ErrorList{}
	var asmOutput []*testOutput
	var exeOutput []*testOutput

	mods := irload.LoadAll(ctx, filenames, true, errs)
	if !errs.IsError() {
		mod, err := irload.Link(mods)
		if err != nil {
			errs.AddGeneric(err)
			if mod.C != nil {
				mod.Dispose()
			}
		} else {
			if len(desc.asm) > 0 {
				asmOutput = emitAssembly(mod, errs)
			}
			if desc.runs() {
				exeOutput = execute(mod, testName, desc.engine, errs)
			} else {
				mod.Dispose()
			}
		}
	} else {
		for _, mod := range mods {
			mod.Dispose()
		}
	}

	var compilerOutput []*testOutput

	errs.Sort()
	addCompilerOutput(errs.Warnings, &compilerOutput)
	addCompilerOutput(errs.Errors, &compilerOutput)
	compareOutput(desc.errors, compilerOutput, result)

	if !errs.IsError() {
		compareOutput(desc.exit, exeOutput, result)
		matchInOrder(desc.asm, asmOutput, result)
	}

	if len(result.reason) > 0 {
		result.status = statusFail
	}

	return result
}

func emitAssembly(mod llvm.Module, errs *common.ErrorList) []*testOutput {
	tm, err := ee.NewTargetMachine(ee.DefaultMachineOptions())
	if err != nil {
		errs.AddGeneric(err)
		return nil
	}
	defer tm.Dispose()

	asm, err := tm.EmitAssembly(mod)
	if err != nil {
		errs.AddGeneric(err)
		return nil
	}

	var output []*testOutput
	addAsmOutput(asm, &output)
	return output
}

// execute takes ownership of mod.
func execute(mod llvm.Module, testName string, kind ee.EngineKind, errs *common.ErrorList) []*testOutput {
	b := ee.NewEngineBuilder(mod)
	switch kind {
	case ee.EngineJIT:
		b.ForceJIT()
	case ee.EngineInterpreter:
		b.ForceInterpreter()
	}

	engine, err := b.Create(nil)
	if err != nil {
		errs.AddGeneric(err)
		return nil
	}
	defer engine.Dispose()

	fn, ok := engine.FindFunction("main")
	if !ok {
		errs.Add(common.NoPosition, "function main not found")
		return nil
	}

	engine.RunStaticConstructors()
	code := engine.RunFunctionAsMain(fn, []string{testName}, nil)
	engine.RunStaticDestructors()

	pos := common.Position{Line: 1, Column: 1}
	return []*testOutput{{pos: pos, text: strconv.Itoa(code)}}
}

func addCompilerOutput(errors []*common.Error, output *[]*testOutput) {
	for _, err := range errors {
		pos := err.Pos
		var msg string
		if pos.Line > 0 {
			msg = fmt.Sprintf("%s(%d): %s", err.ID, pos.Line, err.Msg)
		} else {
			msg = fmt.Sprintf("%s: %s", err.ID, err.Msg)
		}
		*output = append(*output, &testOutput{pos: pos, text: msg})
	}
}

func addAsmOutput(asm string, output *[]*testOutput) {
	for i, line := range strings.Split(asm, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if len(line) == 0 {
			continue
		}
		pos := common.Position{Line: i + 1, Column: 1}
		*output = append(*output, &testOutput{pos: pos, text: line})
	}
}

func matchPattern(expected *testOutputPattern, text string) bool {
	offset := 0
	partCount := 0

	for _, part := range expected.parts {
		if part.regex != nil {
			found := part.regex.FindString(text[offset:])
			offset += len(found)
		} else {
			partLen := len(part.text)
			remaining := (len(text) - offset) - partLen
			if remaining < 0 || text[offset:offset+partLen] != part.text {
				break
			}
			offset += partLen
		}
		partCount++
	}

	return offset == len(text) && partCount == len(expected.parts)
}

func compareOutput(expectedOutput []*testOutputPattern, actualOutput []*testOutput, result *testResult) {
	expectedIndex := 0
	actualIndex := 0

	for ; expectedIndex < len(expectedOutput) &&
		actualIndex < len(actualOutput); expectedIndex, actualIndex = expectedIndex+1, actualIndex+1 {
		expected := expectedOutput[expectedIndex]
		actual := actualOutput[actualIndex]

		if !matchPattern(expected, actual.text) {
			result.addReason("%s(%s): '%s'", common.BoldGreen("expected"), expected.pos, expected.text)
			result.addReason("     %s(%s): '%s'", common.BoldRed("got"), actual.pos, actual.text)
		}
	}

	if actualIndex < len(actualOutput) {
		result.addReason("%s:", common.BoldRed("got"))
		for i := actualIndex; i < len(actualOutput); i++ {
			result.addReason("[%d] (%s): '%s'", i+1, actualOutput[i].pos, actualOutput[i].text)
		}
	}

	if expectedIndex < len(expectedOutput) {
		result.addReason("%s:", common.BoldGreen("expected"))
		for i := expectedIndex; i < len(expectedOutput); i++ {
			result.addReason("[%d] (%s): '%s'", i+1, expectedOutput[i].pos, expectedOutput[i].text)
		}
	}
}

// matchInOrder requires each pattern to occur in some line after the
// line matched by the previous pattern.
func matchInOrder(expectedOutput []*testOutputPattern, actualOutput []*testOutput, result *testResult) {
	actualIndex := 0
	for _, expected := range expectedOutput {
		re := expected.regexp()
		found := false
		for ; actualIndex < len(actualOutput); actualIndex++ {
			if re.MatchString(actualOutput[actualIndex].text) {
				found = true
				actualIndex++
				break
			}
		}
		if !found {
			result.addReason("%s(%s): '%s' not found in assembly", common.BoldGreen("expected"), expected.pos, expected.text)
			return
		}
	}
}

func match(lit *string, prefix string) bool {
	if strings.HasPrefix(*lit, prefix) {
		(*lit) = (*lit)[len(prefix):]
		return true
	}
	return false
}

// parseTestDescription reads the ; comment directives of an IR file. An
// expect-error that trails an instruction is tied to that line.
func parseTestDescription(filename string, src string, result *testResult) *testDescription {
	desc := &testDescription{engine: ee.EngineEither}

	for i, line := range strings.Split(src, "\n") {
		idx := strings.IndexByte(line, ';')
		if idx < 0 {
			continue
		}

		raw := strings.TrimSpace(line[idx+1:])
		lit := raw
		pos := common.Position{Filename: filename, Line: i + 1, Column: idx + 1}
		trailing := len(strings.TrimSpace(line[:idx])) > 0

		if match(&lit, "engine:") {
			switch strings.TrimSpace(lit) {
			case "jit":
				desc.engine = ee.EngineJIT
			case "interp":
				desc.engine = ee.EngineInterpreter
			default:
				result.status = statusInvalid
				result.addReason("bad engine at '%s'", pos)
			}
			continue
		}

		if !match(&lit, "expect") {
			continue
		}

		pattern := &testOutputPattern{pos: pos, text: raw}
		var list *[]*testOutputPattern
		isLineNum := false

		if match(&lit, "-error") {
			list = &desc.errors
			isLineNum = trailing
			pattern.addPart(common.ErrorMsg.String(), nil)
		} else if match(&lit, "-exit") {
			list = &desc.exit
		} else if match(&lit, "-asm") {
			list = &desc.asm
		}

		if list == nil || !match(&lit, ":") {
			result.status = statusInvalid
			result.addReason("bad test description at '%s'", pos)
			continue
		}

		if list == &desc.errors {
			if isLineNum {
				pattern.addPart(fmt.Sprintf("(%d): ", pos.Line), nil)
			} else {
				pattern.addPart(": ", nil)
			}
		}

		if err := addPatternParts(lit, pos, pattern); err != nil {
			result.status = statusInvalid
			result.addReason(err.Error())
			continue
		}

		*list = append(*list, pattern)
	}

	return desc
}

func addPatternParts(line string, pos common.Position, pattern *testOutputPattern) error {
	line = strings.TrimSpace(line)
	offset := 0
	partOffset := 0
	partLen := 0
	isRegex := false
	for offset < len(line) {
		tag := ""
		if isRegex {
			tag = "</re>"
		} else {
			tag = "<re>"
		}
		hasTag := false
		if strings.HasPrefix(line[offset:], tag) {
			hasTag = true
			offset += len(tag)
		} else {
			offset++
			partLen++
		}
		if hasTag || offset == len(line) {
			partText := line[partOffset : partOffset+partLen]
			var regex *regexp.Regexp
			if isRegex {
				var err error
				partText = strings.TrimSpace(partText)
				regex, err = regexp.Compile(partText)
				if err != nil {
					return errors.New("bad regex: %s: %s: %s", pos, partText, err)
				}
			}
			if len(partText) > 0 || regex != nil {
				pattern.addPart(partText, regex)
			}
			isRegex = !isRegex
			partOffset = offset
			partLen = 0
		}
	}
	return nil
}

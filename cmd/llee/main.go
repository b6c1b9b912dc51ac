package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cjo5/llvmee/ee"
	"github.com/cjo5/llvmee/internal/common"
	"github.com/cjo5/llvmee/internal/irload"
	"go.uber.org/zap"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	config := common.NewToolConfig(cwd)

	var listTargets, hostInfo bool
	var runArgs string

	flag.Usage = func() {
		fmt.Printf("Usage of %s: [options] file.ll...\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.StringVar(&config.Emit, "emit", config.Emit, "What to do with the linked module: run, asm or obj")
	flag.StringVar(&config.Output, "o", "", "Output file for asm/obj (default stdout)")
	flag.StringVar(&config.Triple, "triple", "", "Target triple (default host)")
	flag.StringVar(&config.March, "march", "", "Target architecture by registry name, e.g. x86-64")
	flag.StringVar(&config.MCPU, "mcpu", "", "Target CPU (default host CPU on the host triple)")
	flag.StringVar(&config.MAttrs, "mattr", "", "Target features, e.g. +sse4.2,-avx")
	flag.IntVar(&config.Opt, "O", config.Opt, "Optimization level 0-3")
	flag.StringVar(&config.CodeModel, "code-model", "", "Code model: tiny, small, kernel, medium, large")
	flag.StringVar(&config.Reloc, "reloc", "", "Relocation model: static, pic, dynamic-no-pic")
	flag.StringVar(&config.Entry, "entry", config.Entry, "Function to run")
	flag.StringVar(&runArgs, "args", "", "Space separated arguments passed to the entry function")
	flag.BoolVar(&config.Interp, "interp", false, "Run with the interpreter instead of the JIT")
	flag.BoolVar(&config.Verify, "verify", config.Verify, "Verify modules after loading")
	flag.BoolVar(&config.Verbose, "verbose", false, "Print engine and codegen info")
	flag.BoolVar(&config.LLVMIR, "dump-llvm-ir", false, "Print the linked LLVM IR")
	flag.BoolVar(&listTargets, "targets", false, "List registered targets and exit")
	flag.BoolVar(&hostInfo, "host", false, "Print host triple, CPU and features and exit")
	flag.Parse()

	logger, err := config.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: logger: %s\n", common.BoldRed(common.ErrorMsg.String()), err)
		os.Exit(1)
	}
	defer logger.Sync()
	ee.SetLogger(logger)

	if listTargets {
		ee.InitializeAllTargets()
		if err := ee.PrintRegisteredTargets(os.Stdout); err != nil {
			os.Exit(1)
		}
		return
	}

	if hostInfo {
		printHostInfo()
		return
	}

	if len(flag.Args()) == 0 {
		fmt.Printf("%s: no input files\n", common.BoldRed(common.ErrorMsg.String()))
		os.Exit(0)
	}

	errs := &common.ErrorList{}
	code := build(flag.Args(), strings.Fields(runArgs), config, errs)
	printErrors(errs)
	os.Exit(code)
}

func printHostInfo() {
	fmt.Printf("triple:   %s\n", ee.DefaultTriple())
	fmt.Printf("cpu:      %s\n", ee.HostCPUName())
	fmt.Printf("features: %s\n", ee.HostCPUFeatures())

	if err := ee.InitializeNativeTarget(); err != nil {
		return
	}
	tm, err := ee.NewTargetMachine(ee.DefaultMachineOptions())
	if err != nil {
		return
	}
	defer tm.Dispose()
	fmt.Printf("target:   %s (%s)\n", tm.TargetName(), tm.TargetShortDescription())
	fmt.Printf("order:    %s\n", tm.ByteOrder())
}

func printErrors(errs *common.ErrorList) {
	errs.Sort()
	errs.LoadContext()

	for _, warn := range errs.Warnings {
		fmt.Fprintf(os.Stderr, "%s\n", warn)
	}

	for _, err := range errs.Errors {
		fmt.Fprintf(os.Stderr, "%s\n", err)
	}
}

func build(filenames []string, runArgs []string, config *common.ToolConfig, errs *common.ErrorList) int {
	kind, err := config.EmitKind()
	if addError(err, errs) {
		return 1
	}
	opts, err := config.MachineOptions()
	if addError(err, errs) {
		return 1
	}

	if addError(ee.InitializeNativeTarget(), errs) {
		return 1
	}
	if config.Triple != "" || config.March != "" {
		ee.InitializeAllTargets()
	}

	var paths []string
	for _, filename := range filenames {
		paths = append(paths, config.Abs(filename))
	}

	mods := irload.LoadAll(llvm.GlobalContext(), paths, config.Verify, errs)
	if errs.IsError() {
		for _, mod := range mods {
			mod.Dispose()
		}
		return 1
	}

	mod, err := irload.Link(mods)
	if addError(err, errs) {
		if mod.C != nil {
			mod.Dispose()
		}
		return 1
	}

	if config.LLVMIR {
		fmt.Fprint(os.Stderr, mod.String())
	}

	if kind == common.EmitRun {
		return run(mod, append([]string{filenames[0]}, runArgs...), config, opts, errs)
	}
	return emit(mod, kind, config, opts, errs)
}

func selectMachine(config *common.ToolConfig, opts ee.MachineOptions) (*ee.TargetMachine, error) {
	if config.March != "" {
		return ee.LookupTargetMachine(config.March, opts)
	}
	return ee.NewTargetMachine(opts)
}

func emit(mod llvm.Module, kind common.EmitKind, config *common.ToolConfig, opts ee.MachineOptions, errs *common.ErrorList) int {
	defer mod.Dispose()

	tm, err := selectMachine(config, opts)
	if addError(err, errs) {
		return 1
	}
	defer tm.Dispose()

	var out []byte
	if kind == common.EmitAsm {
		var asm string
		asm, err = tm.EmitAssembly(mod)
		out = []byte(asm)
	} else {
		out, err = tm.EmitObject(mod)
	}
	if addError(err, errs) {
		return 1
	}

	ee.Logger().Info("emitted",
		zap.Stringer("kind", kind),
		zap.String("triple", tm.Triple()),
		zap.String("cpu", tm.CPU()),
		zap.Int("bytes", len(out)))

	if addError(writeOutput(config.Output, kind, out), errs) {
		return 1
	}
	return 0
}

func writeOutput(path string, kind common.EmitKind, out []byte) error {
	if path == "" || path == "-" {
		if kind == common.EmitObj && common.IsTerminal(os.Stdout) {
			return errors.New("refusing to write an object file to a terminal, use -o")
		}
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrap(err, "write %s", path)
	}
	return nil
}

func run(mod llvm.Module, argv []string, config *common.ToolConfig, opts ee.MachineOptions, errs *common.ErrorList) int {
	b := ee.NewEngineBuilder(mod).
		Opt(opts.Opt).
		MCPU(config.MCPU).
		MAttrs(config.MAttrs).
		CodeModel(opts.CodeModel)
	if config.Interp {
		b.ForceInterpreter()
	}

	var tm *ee.TargetMachine
	if config.Triple != "" || config.March != "" {
		var err error
		if tm, err = selectMachine(config, opts); addError(err, errs) {
			mod.Dispose()
			return 1
		}
	}

	engine, err := b.Create(tm)
	if addError(err, errs) {
		return 1
	}
	defer engine.Dispose()

	fn, ok := engine.FindFunction(config.Entry)
	if !ok {
		errs.Add(common.NoPosition, "entry function %q not found", config.Entry)
		return 1
	}

	ee.Logger().Debug("running",
		zap.String("entry", config.Entry),
		zap.Stringer("engine", engine.Kind()),
		zap.Strings("argv", argv))

	engine.RunStaticConstructors()
	code := engine.RunFunctionAsMain(fn, argv, os.Environ())
	engine.RunStaticDestructors()
	return code
}

func addError(newError error, errs *common.ErrorList) bool {
	if newError == nil {
		return false
	}
	errs.AddGeneric(newError)
	return true
}

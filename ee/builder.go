package ee

/*
#include "llvm-c/ExecutionEngine.h"
*/
import "C"
import (
	"strings"
	"unicode"
	"unsafe"

	"go.uber.org/zap"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

// EngineBuilder collects the settings for an ExecutionEngine. It is used
// once: Create hands the module to the new engine.
type EngineBuilder struct {
	m        llvm.Module
	kind     EngineKind
	opt      OptLevel
	optSet   bool
	model    CodeModel
	mcpu     string
	march    string
	mattrs   []string
	noFPElim bool
	fastISel bool

	err error
}

// NewEngineBuilder starts configuring an engine for m.
func NewEngineBuilder(m llvm.Module) *EngineBuilder {
	return &EngineBuilder{
		m:     m,
		kind:  EngineEither,
		opt:   OptDefault,
		model: CodeModelDefault,
	}
}

func (b *EngineBuilder) ForceJIT() *EngineBuilder {
	b.kind = EngineJIT
	return b
}

func (b *EngineBuilder) ForceInterpreter() *EngineBuilder {
	b.kind = EngineInterpreter
	return b
}

// Opt sets the JIT code generation level. Levels outside [0, 3] make the
// next Create or SelectTarget fail.
func (b *EngineBuilder) Opt(level OptLevel) *EngineBuilder {
	if !level.Valid() {
		b.setErr(errors.Wrap(ErrInvalidOptLevel, "level %d", level))
		return b
	}
	b.opt = level
	b.optSet = true
	return b
}

// MAttrs sets machine attributes from a comma or space separated list,
// e.g. "+sse,-3dnow".
func (b *EngineBuilder) MAttrs(attrs string) *EngineBuilder {
	b.mattrs = splitAttrs(attrs)
	return b
}

func (b *EngineBuilder) MCPU(cpu string) *EngineBuilder {
	b.mcpu = cpu
	return b
}

// MArch selects the target by registry name in SelectTarget.
func (b *EngineBuilder) MArch(arch string) *EngineBuilder {
	b.march = arch
	return b
}

func (b *EngineBuilder) CodeModel(cm CodeModel) *EngineBuilder {
	b.model = cm
	return b
}

func (b *EngineBuilder) NoFramePointerElim(v bool) *EngineBuilder {
	b.noFPElim = v
	return b
}

func (b *EngineBuilder) FastISel(v bool) *EngineBuilder {
	b.fastISel = v
	return b
}

func (b *EngineBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first configuration error, if any.
func (b *EngineBuilder) Err() error {
	return b.err
}

// Create builds the engine. tm is optional; when given, the module is
// retargeted to it and the engine takes ownership of it. The engine owns
// the module from here on, also when creation fails.
func (b *EngineBuilder) Create(tm *TargetMachine) (*ExecutionEngine, error) {
	if b.err != nil {
		return nil, b.err
	}

	opt, model := b.opt, b.model
	cpu, features := b.mcpu, joinAttrs(b.mattrs)
	if tm != nil {
		b.m.SetTarget(tm.Triple())
		b.m.SetDataLayout(tm.dataLayout())
		if cpu == "" {
			cpu = tm.CPU()
		}
		if features == "" {
			features = tm.FeatureString()
		}
		if !b.optSet {
			opt = tm.opt
		}
		if model == CodeModelDefault {
			model = tm.model
		}
	}
	stampSubtarget(b.m, cpu, features)

	kind := b.resolveKind()

	var ref C.LLVMExecutionEngineRef
	var cerr *C.char
	var failed C.LLVMBool
	switch kind {
	case EngineInterpreter:
		failed = C.LLVMCreateInterpreterForModule(&ref, moduleRef(b.m), &cerr)
	default:
		var opts C.struct_LLVMMCJITCompilerOptions
		C.LLVMInitializeMCJITCompilerOptions(&opts, C.size_t(unsafe.Sizeof(opts)))
		opts.OptLevel = C.uint(opt)
		if model != CodeModelDefault {
			opts.CodeModel = C.LLVMCodeModel(model)
		}
		opts.NoFramePointerElim = llvmBool(b.noFPElim)
		opts.EnableFastISel = llvmBool(b.fastISel)
		failed = C.LLVMCreateMCJITCompilerForModule(&ref, moduleRef(b.m), &opts, C.size_t(unsafe.Sizeof(opts)), &cerr)
	}
	if failed != 0 {
		if tm != nil {
			tm.release()
		}
		return nil, errors.Wrap(ErrEngineCreation, "%v: %s", kind, takeMessage(cerr))
	}

	if tm != nil {
		tm.transferred = true
	}

	Logger().Debug("execution engine created",
		zap.Stringer("kind", kind),
		zap.String("triple", b.m.Target()),
		zap.Stringer("opt", opt),
		zap.String("cpu", cpu),
		zap.String("features", features))

	return &ExecutionEngine{
		c:       ref,
		kind:    kind,
		tm:      tm,
		modules: []llvm.Module{b.m},
		lazy:    true,
	}, nil
}

// resolveKind turns EngineEither into the JIT when the module's target
// (or the host) has one, and the interpreter otherwise.
func (b *EngineBuilder) resolveKind() EngineKind {
	if b.kind != EngineEither {
		return b.kind
	}

	triple := b.m.Target()
	if triple == "" {
		triple = DefaultTriple()
	}
	t, err := lookupTarget(triple)
	if err == nil && C.LLVMTargetHasJIT(t) != 0 {
		return EngineJIT
	}

	Logger().Debug("no JIT for target, using interpreter",
		zap.String("triple", triple),
		zap.Error(err))
	return EngineInterpreter
}

// SelectTarget creates the machine the builder would target: the module
// triple (or the host), MCPU, MAttrs and the builder's opt level and code
// model.
func (b *EngineBuilder) SelectTarget() (*TargetMachine, error) {
	return b.SelectTargetFor(b.m.Target(), b.march, b.mcpu, joinAttrs(b.mattrs))
}

// SelectTargetFor is SelectTarget with explicit parameters. A non-empty
// march selects the target by registry name.
func (b *EngineBuilder) SelectTargetFor(triple, march, mcpu, mattrs string) (*TargetMachine, error) {
	if b.err != nil {
		return nil, b.err
	}

	o := MachineOptions{
		Triple:    triple,
		CPU:       mcpu,
		Features:  joinAttrs(splitAttrs(mattrs)),
		Opt:       b.opt,
		CodeModel: b.model,
		Reloc:     RelocDefault,
	}
	if march != "" {
		return LookupTargetMachine(march, o)
	}
	return NewTargetMachine(o)
}

func splitAttrs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func joinAttrs(attrs []string) string {
	return strings.Join(attrs, ",")
}

// stampSubtarget sets target-cpu and target-features on every defined
// function; codegen picks the subtarget from these attributes.
func stampSubtarget(m llvm.Module, cpu, features string) {
	if cpu == "" && features == "" {
		return
	}

	ctx := m.Context()
	for fn := m.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if fn.IsDeclaration() {
			continue
		}
		if cpu != "" {
			fn.AddFunctionAttr(ctx.CreateStringAttribute("target-cpu", cpu))
		}
		if features != "" {
			fn.AddFunctionAttr(ctx.CreateStringAttribute("target-features", features))
		}
	}
}

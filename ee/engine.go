package ee

/*
#include <stdint.h>
#include <stdlib.h>
#include "llvm-c/ExecutionEngine.h"

static uintptr_t llvmeePointerToGlobal(LLVMExecutionEngineRef ee, LLVMValueRef global) {
	return (uintptr_t)LLVMGetPointerToGlobal(ee, global);
}

static void llvmeeAddGlobalMapping(LLVMExecutionEngineRef ee, LLVMValueRef global, uintptr_t addr) {
	LLVMAddGlobalMapping(ee, global, (void *)addr);
}
*/
import "C"
import (
	"unsafe"

	"go.uber.org/zap"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

func init() {
	C.LLVMLinkInMCJIT()
	C.LLVMLinkInInterpreter()
}

// ExecutionEngine runs the functions of the modules it owns, either
// through MCJIT or the interpreter.
type ExecutionEngine struct {
	c       C.LLVMExecutionEngineRef
	kind    EngineKind
	tm      *TargetMachine
	modules []llvm.Module
	lazy    bool
}

// NewExecutionEngine creates an engine for m with default settings.
func NewExecutionEngine(m llvm.Module, forceInterpreter bool) (*ExecutionEngine, error) {
	b := NewEngineBuilder(m)
	if forceInterpreter {
		b.ForceInterpreter()
	}
	return b.Create(nil)
}

// Kind reports whether the engine is a JIT or an interpreter.
func (e *ExecutionEngine) Kind() EngineKind {
	return e.kind
}

// TargetMachine returns the machine passed to EngineBuilder.Create, or nil.
func (e *ExecutionEngine) TargetMachine() *TargetMachine {
	return e.tm
}

// DisableLazyCompilation with disabled set compiles every owned module
// now instead of on first use. The interpreter ignores it.
func (e *ExecutionEngine) DisableLazyCompilation(disabled bool) {
	e.lazy = !disabled
	if e.lazy || e.kind != EngineJIT {
		return
	}

	for _, m := range e.modules {
		for fn := m.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
			if fn.IsDeclaration() {
				continue
			}
			// Unnamed and local functions have no address; the first
			// resolvable one finalizes the module.
			addr := e.FunctionAddress(fn.Name())
			if addr == 0 {
				continue
			}
			Logger().Debug("eager compilation",
				zap.String("function", fn.Name()),
				zap.Uint64("addr", addr))
			break
		}
	}
}

// LazyCompilation reports whether functions are compiled on first use.
func (e *ExecutionEngine) LazyCompilation() bool {
	return e.lazy
}

// RunFunction calls fn with args. The caller owns the result.
func (e *ExecutionEngine) RunFunction(fn llvm.Value, args []*GenericValue) *GenericValue {
	refs := make([]C.LLVMGenericValueRef, len(args))
	for i, a := range args {
		refs[i] = a.c
	}

	var argp *C.LLVMGenericValueRef
	if len(refs) > 0 {
		argp = &refs[0]
	}
	return &GenericValue{c: C.LLVMRunFunction(e.c, valueRef(fn), C.uint(len(refs)), argp)}
}

// RunFunctionAsMain calls fn as a C main function and returns its exit
// code.
func (e *ExecutionEngine) RunFunctionAsMain(fn llvm.Value, argv, envp []string) int {
	cargv, freeArgv := cStringArray(argv, false)
	defer freeArgv()
	cenvp, freeEnvp := cStringArray(envp, true)
	defer freeEnvp()

	return int(C.LLVMRunFunctionAsMain(e.c, valueRef(fn), C.uint(len(argv)), cargv, cenvp))
}

// PointerToFunction returns the address of fn, compiling it if needed.
func (e *ExecutionEngine) PointerToFunction(fn llvm.Value) uintptr {
	return uintptr(C.llvmeePointerToGlobal(e.c, valueRef(fn)))
}

// PointerToGlobal returns the address of a global value.
func (e *ExecutionEngine) PointerToGlobal(v llvm.Value) uintptr {
	return uintptr(C.llvmeePointerToGlobal(e.c, valueRef(v)))
}

// AddGlobalMapping binds global to memory at addr.
func (e *ExecutionEngine) AddGlobalMapping(global llvm.Value, addr uintptr) {
	C.llvmeeAddGlobalMapping(e.c, valueRef(global), C.uintptr_t(addr))
}

// FunctionAddress returns the address of the named function, or 0.
func (e *ExecutionEngine) FunctionAddress(name string) uint64 {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return uint64(C.LLVMGetFunctionAddress(e.c, cname))
}

// GlobalValueAddress returns the address of the named global, or 0.
func (e *ExecutionEngine) GlobalValueAddress(name string) uint64 {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return uint64(C.LLVMGetGlobalValueAddress(e.c, cname))
}

// FindFunction looks name up in all owned modules.
func (e *ExecutionEngine) FindFunction(name string) (llvm.Value, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var fn C.LLVMValueRef
	if C.LLVMFindFunction(e.c, cname, &fn) != 0 {
		return llvm.Value{}, false
	}
	return wrapValue(fn), true
}

func (e *ExecutionEngine) RunStaticConstructors() {
	C.LLVMRunStaticConstructors(e.c)
}

func (e *ExecutionEngine) RunStaticDestructors() {
	C.LLVMRunStaticDestructors(e.c)
}

// FreeMachineCodeFor releases the code generated for fn.
func (e *ExecutionEngine) FreeMachineCodeFor(fn llvm.Value) {
	C.LLVMFreeMachineCodeForFunction(e.c, valueRef(fn))
}

// AddModule hands m to the engine.
func (e *ExecutionEngine) AddModule(m llvm.Module) {
	C.LLVMAddModule(e.c, moduleRef(m))
	e.modules = append(e.modules, m)

	Logger().Debug("module added", zap.Int("modules", len(e.modules)))

	if !e.lazy {
		e.DisableLazyCompilation(true)
	}
}

// RemoveModule takes m back from the engine; the caller owns it again.
func (e *ExecutionEngine) RemoveModule(m llvm.Module) error {
	var out C.LLVMModuleRef
	var cerr *C.char
	if C.LLVMRemoveModule(e.c, moduleRef(m), &out, &cerr) != 0 {
		return errors.Wrap(ErrRemoveModule, "%s", takeMessage(cerr))
	}

	for i, owned := range e.modules {
		if owned.C == m.C {
			e.modules = append(e.modules[:i], e.modules[i+1:]...)
			break
		}
	}

	Logger().Debug("module removed", zap.Int("modules", len(e.modules)))
	return nil
}

// TargetData returns the engine's data layout. The caller disposes it.
func (e *ExecutionEngine) TargetData() llvm.TargetData {
	td := C.LLVMGetExecutionEngineTargetData(e.c)
	return llvm.NewTargetData(takeMessage(C.LLVMCopyStringRepOfTargetData(td)))
}

// Dispose frees the engine, the modules it owns and its target machine.
func (e *ExecutionEngine) Dispose() {
	if e == nil || e.c == nil {
		return
	}
	C.LLVMDisposeExecutionEngine(e.c)
	e.c = nil
	e.modules = nil
	if e.tm != nil {
		e.tm.release()
	}
}

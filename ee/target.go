package ee

/*
#include <stdlib.h>
#include <strings.h>
#include "llvm-c/Core.h"
#include "llvm-c/Target.h"
#include "llvm-c/TargetMachine.h"

static int llvmeeInitializeNative(void) {
	if (LLVMInitializeNativeTarget())
		return 0;
	if (LLVMInitializeNativeAsmPrinter())
		return 0;
	LLVMInitializeNativeAsmParser();
	return 1;
}

static void llvmeeInitializeAll(void) {
	LLVMInitializeAllTargetInfos();
	LLVMInitializeAllTargets();
	LLVMInitializeAllTargetMCs();
	LLVMInitializeAllAsmPrinters();
}

static int llvmeeInitializeTarget(const char *name) {
	int found = 0;
#define LLVM_TARGET(T) \
	if (!found && strcasecmp(name, #T) == 0) { \
		LLVMInitialize##T##TargetInfo(); \
		LLVMInitialize##T##Target(); \
		LLVMInitialize##T##TargetMC(); \
		found = 1; \
	}
#include "llvm/Config/Targets.def"
	if (!found)
		return 0;
#define LLVM_ASM_PRINTER(T) \
	if (strcasecmp(name, #T) == 0) \
		LLVMInitialize##T##AsmPrinter();
#include "llvm/Config/AsmPrinters.def"
	return 1;
}
*/
import "C"
import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unsafe"

	"go.uber.org/zap"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

// InitializeTarget initializes a target by its LLVM name, such as X86 or
// AArch64: target info, target, machine code layer and asm printer.
// Initializing the same target more than once is safe.
func InitializeTarget(name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	if C.llvmeeInitializeTarget(cname) == 0 {
		return errors.Wrap(ErrUnknownTarget, "%q", name)
	}
	return nil
}

// InitializeNativeTarget initializes the host target, which the JIT needs.
func InitializeNativeTarget() error {
	if C.llvmeeInitializeNative() == 0 {
		return errors.Wrap(ErrNativeTarget, "triple %s", DefaultTriple())
	}
	return nil
}

// InitializeAllTargets initializes every target LLVM was built with.
func InitializeAllTargets() {
	C.llvmeeInitializeAll()
}

// HostCPUName returns the name of the host CPU, e.g. "skylake".
func HostCPUName() string {
	return takeMessage(C.LLVMGetHostCPUName())
}

// HostCPUFeatures returns the host CPU feature string, e.g. "+sse2,+avx".
func HostCPUFeatures() string {
	return takeMessage(C.LLVMGetHostCPUFeatures())
}

// DefaultTriple returns the target triple of the host.
func DefaultTriple() string {
	return takeMessage(C.LLVMGetDefaultTargetTriple())
}

// NormalizeTriple returns the canonical form of triple.
func NormalizeTriple(triple string) string {
	ctriple := C.CString(triple)
	defer C.free(unsafe.Pointer(ctriple))
	return takeMessage(C.LLVMNormalizeTargetTriple(ctriple))
}

// TargetInfo describes a registered target.
type TargetInfo struct {
	Name             string
	Description      string
	HasJIT           bool
	HasTargetMachine bool
	HasAsmBackend    bool
}

// RegisteredTargets lists the targets initialized so far.
func RegisteredTargets() []TargetInfo {
	var infos []TargetInfo
	for t := C.LLVMGetFirstTarget(); t != nil; t = C.LLVMGetNextTarget(t) {
		infos = append(infos, targetInfo(t))
	}
	return infos
}

func targetInfo(t C.LLVMTargetRef) TargetInfo {
	return TargetInfo{
		Name:             C.GoString(C.LLVMGetTargetName(t)),
		Description:      C.GoString(C.LLVMGetTargetDescription(t)),
		HasJIT:           C.LLVMTargetHasJIT(t) != 0,
		HasTargetMachine: C.LLVMTargetHasTargetMachine(t) != 0,
		HasAsmBackend:    C.LLVMTargetHasAsmBackend(t) != 0,
	}
}

// PrintRegisteredTargets writes the registered targets sorted by name, in
// llc's format.
func PrintRegisteredTargets(w io.Writer) error {
	infos := RegisteredTargets()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	width := 0
	for _, info := range infos {
		if len(info.Name) > width {
			width = len(info.Name)
		}
	}

	if _, err := fmt.Fprintf(w, "  Registered Targets:\n"); err != nil {
		return err
	}
	if len(infos) == 0 {
		_, err := fmt.Fprintf(w, "    (none)\n")
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(w, "    %-*s - %s\n", width, info.Name, info.Description); err != nil {
			return err
		}
	}
	return nil
}

// MachineOptions configures a TargetMachine.
type MachineOptions struct {
	Triple    string
	CPU       string
	Features  string
	Opt       OptLevel
	CodeModel CodeModel
	Reloc     RelocModel
}

// DefaultMachineOptions returns options for the host at OptDefault.
func DefaultMachineOptions() MachineOptions {
	return MachineOptions{
		Opt:       OptDefault,
		CodeModel: CodeModelDefault,
		Reloc:     RelocDefault,
	}
}

// TargetMachine is a code generation target: triple, CPU, features and
// codegen parameters.
type TargetMachine struct {
	c     C.LLVMTargetMachineRef
	opt   OptLevel
	model CodeModel
	reloc RelocModel

	// Set once an ExecutionEngine owns the machine.
	transferred bool
}

// NewTargetMachine looks the target up by triple and creates a machine
// for it. An empty triple means the host triple; an empty CPU on the host
// triple means the host CPU.
func NewTargetMachine(o MachineOptions) (*TargetMachine, error) {
	if !o.Opt.Valid() {
		return nil, errors.Wrap(ErrInvalidOptLevel, "level %d", o.Opt)
	}

	host := DefaultTriple()
	if o.Triple == "" {
		o.Triple = host
	}
	if o.CPU == "" && o.Triple == host {
		o.CPU = HostCPUName()
	}

	t, err := lookupTarget(o.Triple)
	if err != nil {
		return nil, err
	}
	return createMachine(t, o)
}

// LookupTargetMachine creates a machine for the target registered under
// arch (as listed by PrintRegisteredTargets, e.g. "x86-64"). The triple is
// o.Triple, or the host triple, with its architecture replaced by arch.
func LookupTargetMachine(arch string, o MachineOptions) (*TargetMachine, error) {
	if !o.Opt.Valid() {
		return nil, errors.Wrap(ErrInvalidOptLevel, "level %d", o.Opt)
	}

	carch := C.CString(arch)
	defer C.free(unsafe.Pointer(carch))

	t := C.LLVMGetTargetFromName(carch)
	if t == nil {
		return nil, errors.Wrap(ErrTargetNotFound, "no target named %q", arch)
	}

	triple := o.Triple
	if triple == "" {
		triple = DefaultTriple()
	}
	o.Triple = NormalizeTriple(archTriple(arch, triple))
	return createMachine(t, o)
}

var archTripleNames = map[string]string{
	"x86-64":  "x86_64",
	"x86":     "i386",
	"arm64":   "aarch64",
	"ppc32":   "powerpc",
	"ppc32le": "powerpcle",
	"ppc64":   "powerpc64",
	"ppc64le": "powerpc64le",
}

// archTriple replaces the architecture component of triple with the
// triple spelling of a registry arch name.
func archTriple(arch, triple string) string {
	if name, ok := archTripleNames[arch]; ok {
		arch = name
	}
	if i := strings.IndexByte(triple, '-'); i >= 0 {
		return arch + triple[i:]
	}
	return arch
}

func lookupTarget(triple string) (C.LLVMTargetRef, error) {
	ctriple := C.CString(triple)
	defer C.free(unsafe.Pointer(ctriple))

	var t C.LLVMTargetRef
	var cerr *C.char
	if C.LLVMGetTargetFromTriple(ctriple, &t, &cerr) != 0 {
		return nil, errors.Wrap(ErrTargetNotFound, "%s", takeMessage(cerr))
	}
	return t, nil
}

func createMachine(t C.LLVMTargetRef, o MachineOptions) (*TargetMachine, error) {
	name := C.GoString(C.LLVMGetTargetName(t))
	if C.LLVMTargetHasTargetMachine(t) == 0 {
		return nil, errors.Wrap(ErrNoTargetMachine, "target %s", name)
	}

	ctriple := C.CString(o.Triple)
	defer C.free(unsafe.Pointer(ctriple))
	ccpu := C.CString(o.CPU)
	defer C.free(unsafe.Pointer(ccpu))
	cfeatures := C.CString(o.Features)
	defer C.free(unsafe.Pointer(cfeatures))

	ref := C.LLVMCreateTargetMachine(t, ctriple, ccpu, cfeatures,
		o.Opt.codeGenLevel(),
		C.LLVMRelocMode(o.Reloc),
		C.LLVMCodeModel(o.CodeModel))
	if ref == nil {
		return nil, errors.Wrap(ErrMachineCreation, "target %s triple %s", name, o.Triple)
	}

	Logger().Debug("target machine created",
		zap.String("target", name),
		zap.String("triple", o.Triple),
		zap.String("cpu", o.CPU),
		zap.String("features", o.Features),
		zap.Stringer("opt", o.Opt),
		zap.Stringer("code_model", o.CodeModel),
		zap.Stringer("reloc", o.Reloc))

	return &TargetMachine{c: ref, opt: o.Opt, model: o.CodeModel, reloc: o.Reloc}, nil
}

// EmitAssembly returns the module compiled to assembly for this machine.
func (tm *TargetMachine) EmitAssembly(m llvm.Module) (string, error) {
	b, err := tm.emit(m, AssemblyFile)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EmitObject returns the module compiled to an object file for this machine.
func (tm *TargetMachine) EmitObject(m llvm.Module) ([]byte, error) {
	return tm.emit(m, ObjectFile)
}

func (tm *TargetMachine) emit(m llvm.Module, ft FileType) ([]byte, error) {
	m.SetDataLayout(tm.dataLayout())

	var cerr *C.char
	var buf C.LLVMMemoryBufferRef
	if C.LLVMTargetMachineEmitToMemoryBuffer(tm.c, moduleRef(m), C.LLVMCodeGenFileType(ft), &cerr, &buf) != 0 {
		return nil, errors.Wrap(ErrEmit, "%v: %s", ft, takeMessage(cerr))
	}
	defer C.LLVMDisposeMemoryBuffer(buf)

	start := C.LLVMGetBufferStart(buf)
	size := C.LLVMGetBufferSize(buf)
	return C.GoBytes(unsafe.Pointer(start), C.int(size)), nil
}

// EmitToFile writes the compiled module to path.
func (tm *TargetMachine) EmitToFile(m llvm.Module, path string, ft FileType) error {
	m.SetDataLayout(tm.dataLayout())

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var cerr *C.char
	if C.LLVMTargetMachineEmitToFile(tm.c, moduleRef(m), cpath, C.LLVMCodeGenFileType(ft), &cerr) != 0 {
		return errors.Wrap(ErrEmit, "%v to %s: %s", ft, path, takeMessage(cerr))
	}
	return nil
}

func (tm *TargetMachine) dataLayout() string {
	td := C.LLVMCreateTargetDataLayout(tm.c)
	defer C.LLVMDisposeTargetData(td)
	return takeMessage(C.LLVMCopyStringRepOfTargetData(td))
}

// TargetData returns the machine's data layout. The caller disposes it.
func (tm *TargetMachine) TargetData() llvm.TargetData {
	return llvm.NewTargetData(tm.dataLayout())
}

// TargetName returns the registry name of the target, e.g. "x86-64".
func (tm *TargetMachine) TargetName() string {
	return C.GoString(C.LLVMGetTargetName(C.LLVMGetTargetMachineTarget(tm.c)))
}

func (tm *TargetMachine) TargetShortDescription() string {
	return C.GoString(C.LLVMGetTargetDescription(C.LLVMGetTargetMachineTarget(tm.c)))
}

func (tm *TargetMachine) Triple() string {
	return takeMessage(C.LLVMGetTargetMachineTriple(tm.c))
}

func (tm *TargetMachine) CPU() string {
	return takeMessage(C.LLVMGetTargetMachineCPU(tm.c))
}

func (tm *TargetMachine) FeatureString() string {
	return takeMessage(C.LLVMGetTargetMachineFeatureString(tm.c))
}

func (tm *TargetMachine) ByteOrder() ByteOrder {
	td := C.LLVMCreateTargetDataLayout(tm.c)
	defer C.LLVMDisposeTargetData(td)
	return ByteOrder(C.LLVMByteOrder(td))
}

func (tm *TargetMachine) Opt() OptLevel         { return tm.opt }
func (tm *TargetMachine) CodeModel() CodeModel   { return tm.model }
func (tm *TargetMachine) RelocModel() RelocModel { return tm.reloc }

// SetAsmVerbosity toggles comments in emitted assembly.
func (tm *TargetMachine) SetAsmVerbosity(verbose bool) {
	C.LLVMSetTargetMachineAsmVerbosity(tm.c, llvmBool(verbose))
}

// Dispose frees the machine. It does nothing once the machine has been
// handed to an ExecutionEngine.
func (tm *TargetMachine) Dispose() {
	if tm == nil || tm.transferred {
		return
	}
	tm.release()
}

func (tm *TargetMachine) release() {
	if tm.c == nil {
		return
	}
	C.LLVMDisposeTargetMachine(tm.c)
	tm.c = nil
}

package ee

/*
#include "llvm-c/TargetMachine.h"
*/
import "C"
import (
	"strings"

	"tlog.app/go/errors"
)

// ByteOrder is the byte ordering of a target.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	}
	return "unknown"
}

// CodeModel controls how code and data addresses are materialized.
type CodeModel C.LLVMCodeModel

const (
	CodeModelDefault    CodeModel = C.LLVMCodeModelDefault
	CodeModelJITDefault CodeModel = C.LLVMCodeModelJITDefault
	CodeModelTiny       CodeModel = C.LLVMCodeModelTiny
	CodeModelSmall      CodeModel = C.LLVMCodeModelSmall
	CodeModelKernel     CodeModel = C.LLVMCodeModelKernel
	CodeModelMedium     CodeModel = C.LLVMCodeModelMedium
	CodeModelLarge      CodeModel = C.LLVMCodeModelLarge
)

var codeModelNames = map[CodeModel]string{
	CodeModelDefault:    "default",
	CodeModelJITDefault: "jit-default",
	CodeModelTiny:       "tiny",
	CodeModelSmall:      "small",
	CodeModelKernel:     "kernel",
	CodeModelMedium:     "medium",
	CodeModelLarge:      "large",
}

func (cm CodeModel) String() string {
	if s, ok := codeModelNames[cm]; ok {
		return s
	}
	return "unknown"
}

// ParseCodeModel parses the llc spelling of a code model.
func ParseCodeModel(s string) (CodeModel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CodeModelDefault, nil
	}
	for cm, name := range codeModelNames {
		if name == s {
			return cm, nil
		}
	}
	return CodeModelDefault, errors.New("unknown code model %q", s)
}

// RelocModel is the relocation model used for generated code.
type RelocModel C.LLVMRelocMode

const (
	RelocDefault      RelocModel = C.LLVMRelocDefault
	RelocStatic       RelocModel = C.LLVMRelocStatic
	RelocPIC          RelocModel = C.LLVMRelocPIC
	RelocDynamicNoPIC RelocModel = C.LLVMRelocDynamicNoPic
)

var relocModelNames = map[RelocModel]string{
	RelocDefault:      "default",
	RelocStatic:       "static",
	RelocPIC:          "pic",
	RelocDynamicNoPIC: "dynamic-no-pic",
}

func (r RelocModel) String() string {
	if s, ok := relocModelNames[r]; ok {
		return s
	}
	return "unknown"
}

// ParseRelocModel parses the llc spelling of a relocation model.
func ParseRelocModel(s string) (RelocModel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RelocDefault, nil
	}
	for r, name := range relocModelNames {
		if name == s {
			return r, nil
		}
	}
	return RelocDefault, errors.New("unknown relocation model %q", s)
}

// OptLevel is the code generation optimization level.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

// Valid reports whether l is in [0, 3].
func (l OptLevel) Valid() bool {
	return l >= OptNone && l <= OptAggressive
}

func (l OptLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptLess:
		return "less"
	case OptDefault:
		return "default"
	case OptAggressive:
		return "aggressive"
	}
	return "invalid"
}

func (l OptLevel) codeGenLevel() C.LLVMCodeGenOptLevel {
	switch l {
	case OptNone:
		return C.LLVMCodeGenLevelNone
	case OptLess:
		return C.LLVMCodeGenLevelLess
	case OptAggressive:
		return C.LLVMCodeGenLevelAggressive
	}
	return C.LLVMCodeGenLevelDefault
}

// EngineKind selects the kind of execution engine to build.
type EngineKind int

const (
	// EngineEither picks the JIT when the target supports one and falls
	// back to the interpreter otherwise.
	EngineEither EngineKind = iota
	EngineJIT
	EngineInterpreter
)

func (k EngineKind) String() string {
	switch k {
	case EngineEither:
		return "either"
	case EngineJIT:
		return "jit"
	case EngineInterpreter:
		return "interpreter"
	}
	return "unknown"
}

// FileType is the kind of file emitted by a TargetMachine.
type FileType C.LLVMCodeGenFileType

const (
	AssemblyFile FileType = C.LLVMAssemblyFile
	ObjectFile   FileType = C.LLVMObjectFile
)

func (ft FileType) String() string {
	switch ft {
	case AssemblyFile:
		return "asm"
	case ObjectFile:
		return "obj"
	}
	return "unknown"
}

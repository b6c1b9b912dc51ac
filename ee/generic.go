package ee

/*
#include <stdint.h>
#include "llvm-c/ExecutionEngine.h"

static LLVMGenericValueRef llvmeeGenericOfAddr(uintptr_t addr) {
	return LLVMCreateGenericValueOfPointer((void *)addr);
}

static uintptr_t llvmeeGenericToAddr(LLVMGenericValueRef v) {
	return (uintptr_t)LLVMGenericValueToPointer(v);
}
*/
import "C"
import (
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

// GenericValue is a boxed integer, float or pointer passed into and out
// of functions run by an ExecutionEngine.
type GenericValue struct {
	c C.LLVMGenericValueRef
}

// NewGenericInt boxes v as an unsigned value of integer type ty.
func NewGenericInt(ty llvm.Type, v uint64) (*GenericValue, error) {
	if ty.TypeKind() != llvm.IntegerTypeKind {
		return nil, errors.Wrap(ErrInvalidType, "int value of %v", ty.TypeKind())
	}
	return &GenericValue{c: C.LLVMCreateGenericValueOfInt(typeRef(ty), C.ulonglong(v), 0)}, nil
}

// NewGenericIntSigned boxes v as a signed value of integer type ty.
func NewGenericIntSigned(ty llvm.Type, v int64) (*GenericValue, error) {
	if ty.TypeKind() != llvm.IntegerTypeKind {
		return nil, errors.Wrap(ErrInvalidType, "int value of %v", ty.TypeKind())
	}
	return &GenericValue{c: C.LLVMCreateGenericValueOfInt(typeRef(ty), C.ulonglong(uint64(v)), 1)}, nil
}

// NewGenericReal boxes v as a float or double, depending on ty.
func NewGenericReal(ty llvm.Type, v float64) (*GenericValue, error) {
	switch ty.TypeKind() {
	case llvm.FloatTypeKind, llvm.DoubleTypeKind:
	default:
		return nil, errors.Wrap(ErrInvalidType, "real value of %v", ty.TypeKind())
	}
	return &GenericValue{c: C.LLVMCreateGenericValueOfFloat(typeRef(ty), C.double(v))}, nil
}

// NewGenericPointer boxes a raw address.
func NewGenericPointer(addr uintptr) *GenericValue {
	return &GenericValue{c: C.llvmeeGenericOfAddr(C.uintptr_t(addr))}
}

// AsInt returns the value zero-extended to 64 bits.
func (g *GenericValue) AsInt() uint64 {
	return uint64(C.LLVMGenericValueToInt(g.c, 0))
}

// AsIntSigned returns the value sign-extended to 64 bits.
func (g *GenericValue) AsIntSigned() int64 {
	return int64(C.LLVMGenericValueToInt(g.c, 1))
}

// AsReal returns the value read as ty. It panics with ErrInvalidType
// unless ty is float or double.
func (g *GenericValue) AsReal(ty llvm.Type) float64 {
	switch ty.TypeKind() {
	case llvm.FloatTypeKind, llvm.DoubleTypeKind:
	default:
		panic(errors.Wrap(ErrInvalidType, "real value of %v", ty.TypeKind()))
	}
	return float64(C.LLVMGenericValueToFloat(typeRef(ty), g.c))
}

func (g *GenericValue) AsPointer() uintptr {
	return uintptr(C.llvmeeGenericToAddr(g.c))
}

// IntWidth returns the bit width of an integer value.
func (g *GenericValue) IntWidth() int {
	return int(C.LLVMGenericValueIntWidth(g.c))
}

// Dispose frees the native value. Calling it twice is harmless.
func (g *GenericValue) Dispose() {
	if g == nil || g.c == nil {
		return
	}
	C.LLVMDisposeGenericValue(g.c)
	g.c = nil
}

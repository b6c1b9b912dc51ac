package ee

/*
#include <stdlib.h>
#include "llvm-c/Core.h"
*/
import "C"
import (
	"unsafe"

	"tinygo.org/x/go-llvm"
)

// The go-llvm handle types are single-pointer structs around the same
// llvm-c refs used here, so they convert through unsafe.Pointer.

func moduleRef(m llvm.Module) C.LLVMModuleRef {
	return C.LLVMModuleRef(unsafe.Pointer(m.C))
}

func valueRef(v llvm.Value) C.LLVMValueRef {
	return C.LLVMValueRef(unsafe.Pointer(v.C))
}

func typeRef(t llvm.Type) C.LLVMTypeRef {
	return C.LLVMTypeRef(unsafe.Pointer(t.C))
}

func wrapValue(ref C.LLVMValueRef) (v llvm.Value) {
	*(*C.LLVMValueRef)(unsafe.Pointer(&v)) = ref
	return
}

func llvmBool(b bool) C.LLVMBool {
	if b {
		return 1
	}
	return 0
}

// takeMessage converts an LLVM-allocated message and frees it.
func takeMessage(msg *C.char) string {
	if msg == nil {
		return ""
	}
	defer C.LLVMDisposeMessage(msg)
	return C.GoString(msg)
}

// cStringArray copies ss into a C array of C strings. The array is
// NULL-terminated when terminate is set. free releases everything.
func cStringArray(ss []string, terminate bool) (arr **C.char, free func()) {
	n := len(ss)
	if terminate {
		n++
	}
	if n == 0 {
		return nil, func() {}
	}

	ptrSize := unsafe.Sizeof((*C.char)(nil))
	mem := C.calloc(C.size_t(n), C.size_t(ptrSize))
	items := unsafe.Slice((**C.char)(mem), n)
	for i, s := range ss {
		items[i] = C.CString(s)
	}

	free = func() {
		for i := range ss {
			C.free(unsafe.Pointer(items[i]))
		}
		C.free(mem)
	}
	return (**C.char)(mem), free
}

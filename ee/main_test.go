package ee

import (
	"fmt"
	"os"
	"testing"

	"tinygo.org/x/go-llvm"
)

func TestMain(m *testing.M) {
	if err := InitializeNativeTarget(); err != nil {
		fmt.Fprintln(os.Stderr, "native target:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// squareModule builds square(i32) i32, which the JIT can call directly.
func squareModule(name string) (llvm.Module, llvm.Value) {
	m := llvm.NewModule(name)
	i32 := llvm.Int32Type()
	fn := llvm.AddFunction(m, "square", llvm.FunctionType(i32, []llvm.Type{i32}, false))

	b := llvm.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(llvm.AddBasicBlock(fn, "entry"))
	b.CreateRet(b.CreateMul(fn.Param(0), fn.Param(0), "sq"))
	return m, fn
}

// addModule builds add(i32, i32) i32 and scale(double, double) double.
func addModule(name string) (m llvm.Module, add, scale llvm.Value) {
	m = llvm.NewModule(name)
	i32 := llvm.Int32Type()
	f64 := llvm.DoubleType()

	b := llvm.NewBuilder()
	defer b.Dispose()

	add = llvm.AddFunction(m, "add", llvm.FunctionType(i32, []llvm.Type{i32, i32}, false))
	b.SetInsertPointAtEnd(llvm.AddBasicBlock(add, "entry"))
	b.CreateRet(b.CreateAdd(add.Param(0), add.Param(1), "sum"))

	scale = llvm.AddFunction(m, "scale", llvm.FunctionType(f64, []llvm.Type{f64, f64}, false))
	b.SetInsertPointAtEnd(llvm.AddBasicBlock(scale, "entry"))
	b.CreateRet(b.CreateFMul(scale.Param(0), scale.Param(1), "prod"))
	return m, add, scale
}

// Package ee binds LLVM's execution engine and target machine code
// generation.
//
// The package wraps four native objects: GenericValue, EngineBuilder,
// ExecutionEngine and TargetMachine. IR objects passed in (modules,
// functions, globals, types) are tinygo.org/x/go-llvm values.
//
// A typical JIT session:
//
//	if err := ee.InitializeNativeTarget(); err != nil {
//		return err
//	}
//	engine, err := ee.NewEngineBuilder(mod).ForceJIT().Opt(ee.OptDefault).Create(nil)
//	if err != nil {
//		return err
//	}
//	defer engine.Dispose()
//	res := engine.RunFunction(fn, args)
//	defer res.Dispose()
//
// Handles are not safe for concurrent use.
package ee

package ee

import "tlog.app/go/errors"

// Errors returned by the package. Native LLVM messages are wrapped onto
// them; match with errors.Is.
var (
	ErrTargetNotFound  = errors.New("target not found")
	ErrNoTargetMachine = errors.New("no target machine")
	ErrMachineCreation = errors.New("cannot create target machine")
	ErrEngineCreation  = errors.New("cannot create execution engine")
	ErrInvalidOptLevel = errors.New("invalid optimization level")
	ErrInvalidType     = errors.New("invalid type")
	ErrUnknownTarget   = errors.New("unknown target")
	ErrNativeTarget    = errors.New("native target unavailable")
	ErrEmit            = errors.New("code emission failed")
	ErrRemoveModule    = errors.New("cannot remove module")
)

package common

import (
	"strings"

	"github.com/cjo5/llvmee/ee"
	"go.uber.org/zap"
	"tlog.app/go/errors"
)

// EmitKind is what the driver produces from its input.
type EmitKind int

const (
	EmitRun EmitKind = iota
	EmitAsm
	EmitObj
)

func (k EmitKind) String() string {
	switch k {
	case EmitRun:
		return "run"
	case EmitAsm:
		return "asm"
	case EmitObj:
		return "obj"
	}
	return "-"
}

// ParseEmitKind parses "run", "asm" or "obj".
func ParseEmitKind(s string) (EmitKind, error) {
	switch strings.ToLower(s) {
	case "run", "":
		return EmitRun, nil
	case "asm", "s":
		return EmitAsm, nil
	case "obj", "o":
		return EmitObj, nil
	}
	return EmitRun, errors.New("unknown emit kind %q", s)
}

// ToolConfig contains config options for a driver invocation.
type ToolConfig struct {
	Cwd       string
	Emit      string
	Output    string
	Triple    string
	March     string
	MCPU      string
	MAttrs    string
	Opt       int
	CodeModel string
	Reloc     string
	Entry     string
	Interp    bool
	Verify    bool
	Verbose   bool
	LLVMIR    bool
}

func NewToolConfig(cwd string) *ToolConfig {
	return &ToolConfig{
		Cwd:    cwd,
		Emit:   EmitRun.String(),
		Opt:    int(ee.OptDefault),
		Entry:  "main",
		Verify: true,
	}
}

// EmitKind returns the parsed emit setting.
func (c *ToolConfig) EmitKind() (EmitKind, error) {
	return ParseEmitKind(c.Emit)
}

// MachineOptions converts the codegen settings.
func (c *ToolConfig) MachineOptions() (ee.MachineOptions, error) {
	o := ee.DefaultMachineOptions()
	o.Triple = c.Triple
	o.CPU = c.MCPU
	o.Features = c.MAttrs
	o.Opt = ee.OptLevel(c.Opt)
	if !o.Opt.Valid() {
		return o, errors.Wrap(ee.ErrInvalidOptLevel, "-O%d", c.Opt)
	}

	var err error
	if o.CodeModel, err = ee.ParseCodeModel(c.CodeModel); err != nil {
		return o, err
	}
	if o.Reloc, err = ee.ParseRelocModel(c.Reloc); err != nil {
		return o, err
	}
	return o, nil
}

// Abs resolves filename against the working directory.
func (c *ToolConfig) Abs(filename string) string {
	return Abs(c.Cwd, filename)
}

// NewLogger builds the driver logger: development output when verbose,
// warnings and up otherwise.
func (c *ToolConfig) NewLogger() (*zap.Logger, error) {
	if c.Verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

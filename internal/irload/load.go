// Package irload reads LLVM IR files into modules.
package irload

import (
	"path/filepath"

	"github.com/cjo5/llvmee/internal/common"
	"github.com/cjo5/llvmee/ee"
	"go.uber.org/zap"
	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

// Accepted file extensions: textual IR and bitcode.
const (
	TextExtension    = ".ll"
	BitcodeExtension = ".bc"
)

// Load parses filename in ctx. Parse errors come back as *common.Error
// carrying LLVM's position.
func Load(ctx llvm.Context, filename string) (llvm.Module, error) {
	switch filepath.Ext(filename) {
	case TextExtension, BitcodeExtension:
	default:
		return llvm.Module{}, common.NewError(common.FilePosition(filename), common.ErrorMsg,
			"does not have file extension "+TextExtension+" or "+BitcodeExtension)
	}

	buf, err := llvm.NewMemoryBufferFromFile(filename)
	if err != nil {
		return llvm.Module{}, errors.Wrap(err, "read %s", filename)
	}

	// ParseIR takes ownership of buf.
	mod, err := ctx.ParseIR(buf)
	if err != nil {
		pos, msg := common.ParseDiagnostic(err.Error())
		if !pos.IsValid() {
			pos = common.FilePosition(filename)
		}
		return llvm.Module{}, common.NewError(pos, common.ErrorMsg, msg)
	}

	ee.Logger().Debug("module loaded",
		zap.String("file", filename),
		zap.String("triple", mod.Target()))

	return mod, nil
}

// Verify checks m with the LLVM verifier.
func Verify(m llvm.Module, filename string) error {
	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return common.NewError(common.FilePosition(filename), common.ErrorMsg, err.Error())
	}
	return nil
}

// LoadAll loads every file, recording failures in errs. Only the modules
// that loaded are returned, in argument order.
func LoadAll(ctx llvm.Context, filenames []string, verify bool, errs *common.ErrorList) []llvm.Module {
	var mods []llvm.Module
	for _, filename := range filenames {
		mod, err := Load(ctx, filename)
		if err != nil {
			errs.AddAt(common.FilePosition(filename), err)
			continue
		}
		if verify {
			if err := Verify(mod, filename); err != nil {
				errs.AddGeneric(err)
				mod.Dispose()
				continue
			}
		}
		mods = append(mods, mod)
	}
	return mods
}

// Link links mods into the first one and returns it. The other modules
// are consumed.
func Link(mods []llvm.Module) (llvm.Module, error) {
	if len(mods) == 0 {
		return llvm.Module{}, errors.New("no modules to link")
	}
	dst := mods[0]
	for _, src := range mods[1:] {
		if err := llvm.LinkModules(dst, src); err != nil {
			return dst, errors.Wrap(err, "link")
		}
	}
	return dst, nil
}

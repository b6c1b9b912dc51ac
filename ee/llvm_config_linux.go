//go:build !byollvm && linux

package ee

// Headers only; libraries come from tinygo.org/x/go-llvm's link flags.

// #cgo CPPFLAGS: -I/usr/lib/llvm-18/include -D_GNU_SOURCE -D__STDC_CONSTANT_MACROS -D__STDC_FORMAT_MACROS -D__STDC_LIMIT_MACROS
import "C"

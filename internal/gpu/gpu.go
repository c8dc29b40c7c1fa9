// Package gpu implements the device enumeration behind --list-gpus and
// --gpu (spec §6). Grounded on
// _examples/original_source/app/gpudevice.h's enumerateAdapters, which
// queries DXGI on Windows or Vulkan elsewhere: neither has a Go binding in
// the example pack, and the k-means quantizer (internal/kmeans, spec §4.7)
// is a CPU-only Lloyd's-algorithm implementation with no GPU compute path of
// its own. Device selection is accepted but only ever resolves to the CPU
// path: Adapters always reports no hardware adapters, and ResolveDevice's
// job is reduced to validating the --gpu value and reporting the device a
// real GPU backend would have run on, for parity with the original CLI.
package gpu

import (
	"strconv"
	"strings"

	sferrors "github.com/sogforge/sogforge/internal/errors"
)

// Adapter describes one enumerable compute adapter.
type Adapter struct {
	Index int
	Name  string
}

// Adapters enumerates available GPU adapters. No GPU backend is wired into
// sogforge, so this always returns an empty list; --list-gpus prints
// whatever it returns, same as the original falling back to "no adapters
// found" when DXGI/Vulkan enumeration comes up empty.
func Adapters() []Adapter {
	return nil
}

// Device is the resolved compute device for SOG SH compression.
type Device struct {
	// CPU is true when the quantizer should run the CPU path. This is
	// always true, since no GPU backend is wired in.
	CPU   bool
	Index int
}

// ResolveDevice validates gpuFlag ("auto", "cpu", or a device index string)
// against the available adapters and returns the device to run on. Because
// Adapters never returns any entries, a numeric index always fails.
func ResolveDevice(gpuFlag string) (Device, error) {
	v := strings.ToLower(strings.TrimSpace(gpuFlag))
	switch v {
	case "", "auto", "cpu":
		return Device{CPU: true}, nil
	default:
		idx, err := strconv.Atoi(v)
		if err != nil {
			return Device{}, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--gpu: %q is neither \"auto\", \"cpu\", nor a device index", gpuFlag)
		}
		adapters := Adapters()
		for _, a := range adapters {
			if a.Index == idx {
				return Device{CPU: false, Index: idx}, nil
			}
		}
		return Device{}, sferrors.Newf(sferrors.UserInput, sferrors.CodeBadArgs, "--gpu: no adapter with index %d (use --list-gpus)", idx)
	}
}

// Package profiling writes pprof profiles of a command run to disk.
package profiling

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/pkg/errors"
)

// StartCPUProfile starts a CPU profile written to filename.
// The returned func stops the profile and closes the file.
func StartCPUProfile(ctx context.Context, filename string) (func(), error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not create CPU profile")
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "could not start CPU profile")
	}

	return func() {
		pprof.StopCPUProfile()

		if err := f.Close(); err != nil {
			logx.GetLogger().LogError(ctx, "error closing CPU profile", err)
			return
		}

		logx.GetLogger().LogInfo(ctx, fmt.Sprintf("CPU profile written to %s", filename))
	}, nil
}

// WriteHeapProfile writes a heap profile to filename.
func WriteHeapProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create memory profile")
	}
	defer f.Close()

	// up-to-date statistics
	runtime.GC()

	return errors.Wrap(pprof.WriteHeapProfile(f), "could not write memory profile")
}

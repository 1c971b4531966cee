/*
   Copyright 2026 The Plinth Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Command basics demonstrates the substrate end to end: communicator
// startup, an aligned allocator and a logger as toplevel objects, arena
// work in the middle, and a teardown that collects leaks and flattens
// fatal errors at the very top.
//
// The provoke flags inject faults on purpose, to show how fatal errors
// and leaks travel through the layers:
//
//	--provoke-fatal --which=1   free a foreign pointer during work
//	--provoke-fatal --which=2   free a foreign pointer during teardown
//	--provoke-leaks --which=1   leave an extra allocator reference
//	--provoke-leaks --which=2   drop an allocation without freeing it
//	--provoke-leaks --which=3   leave an extra logger reference
//
// A fatal error terminates the process with a non-zero status after the
// flattened cause chain is printed; leaks are logged and survived.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"plinth.dev/plinth"
	"plinth.dev/plinth/alloc"
	"plinth.dev/plinth/comm"
	"plinth.dev/plinth/logx"
	"plinth.dev/plinth/mstamp"
)

var (
	provokeFatal bool
	provokeLeaks bool
	which        int
	align        int
	indent       int
	logLevel     string
)

func levelOf(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exitFailure is the path of last resort: flatten the error, print it and
// terminate. Used while no logger exists or after the logger is gone.
func exitFailure(e *plinth.Error, prefix string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, plinth.DestroyNoerr(&e))
	os.Exit(1)
}

func workInitAllocator(align int) (*alloc.Allocator, *plinth.Error) {
	a, err := alloc.New(nil)
	if err != nil {
		return nil, plinth.Wrap(err, "allocator new")
	}
	if err := a.SetAlign(align); err != nil {
		return nil, plinth.Wrap(err, "allocator align")
	}
	if err := a.Setup(); err != nil {
		return nil, plinth.Wrap(err, "allocator setup")
	}
	if provokeLeaks && which == 1 {
		if err := a.Ref(); err != nil {
			return nil, plinth.Wrap(err, "provoke allocator leak")
		}
	}
	return a, nil
}

func workInitLog(world *comm.Comm) (*logx.Logger, *plinth.Error) {
	lg, err := logx.New(
		logx.WithLevel(levelOf(logLevel)),
		logx.WithComm(world),
		logx.WithIndent(indent),
	)
	if err != nil {
		return nil, plinth.Wrap(err, "logger new")
	}
	if err := lg.Setup(); err != nil {
		return nil, plinth.Wrap(err, "logger setup")
	}
	return lg, nil
}

func workInit(world *comm.Comm) (*alloc.Allocator, *logx.Logger, *plinth.Error) {
	a, err := workInitAllocator(align)
	if err != nil {
		return nil, nil, plinth.Wrap(err, "work init")
	}
	lg, err := workInitLog(world)
	if err != nil {
		return nil, nil, plinth.Wrap(err, "work init")
	}
	lg.Info("command line flags",
		"provoke-fatal", provokeFatal,
		"provoke-leaks", provokeLeaks,
		"which", which)
	lg.Debug("leave work init")
	return a, lg, nil
}

// workWork runs one round of arena work on top of the allocator, with the
// provoked faults of the F1 and L2 cases mixed in.
func workWork(a *alloc.Allocator, lg *logx.Logger) *plinth.Error {
	lg.Debug("in work work")

	if provokeFatal && which == 1 {
		bogus := make([]byte, 4)
		if err := a.Free(bogus); err != nil {
			return plinth.Wrap(err, "work work")
		}
	}
	if provokeLeaks && which == 2 {
		if _, err := a.Malloc(8); err != nil {
			return plinth.Wrap(err, "work work")
		}
	}

	mst, err := mstamp.New(a)
	if err != nil {
		return plinth.Wrap(err, "arena new")
	}
	if err := mst.SetElemSize(8); err != nil {
		return plinth.Wrap(err, "arena elem size")
	}
	if err := mst.SetStampSize(64); err != nil {
		return plinth.Wrap(err, "arena stamp size")
	}
	if err := mst.Setup(); err != nil {
		return plinth.Wrap(err, "arena setup")
	}

	var elems [][]byte
	for i := 0; i < 10; i++ {
		elem, err := mst.Alloc()
		if err != nil {
			return plinth.Wrap(err, "arena alloc")
		}
		elems = append(elems, elem)
	}
	for i := len(elems) - 1; i >= 0; i-- {
		if err := mst.Free(elems[i]); err != nil {
			return plinth.Wrap(err, "arena free")
		}
	}
	n, err := mst.StampCount()
	if err != nil {
		return plinth.Wrap(err, "arena stamp count")
	}
	lg.Debug("arena round done", "stamps", n)

	if err := mstamp.Destroy(&mst); err != nil {
		return plinth.Wrap(err, "arena destroy")
	}
	return nil
}

// workFinalize tears the toplevel objects down, logger first, allocator
// last, collecting leaks so every one of them is reported.
func workFinalize(pa **alloc.Allocator, plg **logx.Logger) *plinth.Error {
	var leak *plinth.Error

	(*plg).Debug("enter work finalize")

	if provokeLeaks && which == 3 {
		if err := (*plg).Ref(); err != nil {
			return plinth.Wrap(err, "provoke logger leak")
		}
	}

	if err := plinth.CollectLeak(&leak, logx.Destroy(plg)); err != nil {
		return err
	}

	if provokeFatal && which == 2 {
		bogus := make([]byte, 4)
		if err := (*pa).Free(bogus); err != nil {
			return plinth.Wrap(err, "work finalize")
		}
	}

	if err := plinth.CollectLeak(&leak, alloc.Destroy(pa)); err != nil {
		return err
	}
	return leak
}

func run(cmd *cobra.Command, args []string) error {
	if e := comm.Init(); e != nil {
		exitFailure(e, "main init")
	}
	world, e := comm.World()
	if e != nil {
		exitFailure(e, "main world")
	}

	// The predefined logger works before any object of ours exists.
	if rank, e := world.Rank(); e == nil && rank == 0 {
		logx.Predef().Info("basics example begin")
	}
	if e := world.Barrier(); e != nil {
		exitFailure(e, "main barrier")
	}

	scdead := false
	a, lg, e := workInit(world)
	if e != nil {
		exitFailure(e, "work init")
	}

	for i := 0; i < 2; i++ {
		if !scdead {
			if e := workWork(a, lg); e != nil {
				scdead = lg.Report("work work", &e)
			}
		}
	}

	if !scdead {
		if e := workFinalize(&a, &lg); e != nil {
			scdead = logx.Predef().Report("work finalize", &e)
		}
	}

	if e := comm.Finalize(); e != nil {
		exitFailure(e, "main finalize")
	}

	if scdead {
		return fmt.Errorf("main fatal work error")
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "basics",
		Short:         "Exercise errors, allocators and arenas end to end",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().BoolVar(&provokeFatal, "provoke-fatal", false, "Inject a fatal fault")
	rootCmd.Flags().BoolVar(&provokeLeaks, "provoke-leaks", false, "Inject a resource leak")
	rootCmd.Flags().IntVar(&which, "which", 0, "Select the fault site (1-3)")
	rootCmd.Flags().IntVar(&align, "align", 16, "Allocator alignment in bytes")
	rootCmd.Flags().IntVar(&indent, "indent", 3, "Log indentation per depth step")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

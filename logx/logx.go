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

// Package logx provides the logging collaborator of the substrate: a
// slog-backed Logger that carries the rank of the calling process and an
// indentation depth, and that follows the same NEW → SETUP lifecycle and
// counted ownership as every other shareable object, so leftover logger
// references surface as leaks at teardown like any other resource.
//
// The core packages never log; they return errors. Logging happens in
// drivers and adapters, which either report an error and continue or
// report it and stop, see Report.
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"plinth.dev/plinth"
	"plinth.dev/plinth/comm"
	"plinth.dev/plinth/refcount"
)

// Logger writes structured log lines tagged with the process rank.
// Create with New, configure through options or Set* calls, freeze with
// Setup.
type Logger struct {
	rc    refcount.Refcount
	setup bool

	level   slog.Level
	indent  int
	rank    int
	out     io.Writer
	handler slog.Handler

	sl *slog.Logger
}

// Option configures a Logger during New. It always takes a NEW-phase
// *Logger and returns an error or nil.
type Option func(*Logger) *plinth.Error

// WithLevel sets the minimum level a line must have to be written.
func WithLevel(level slog.Level) Option {
	return func(lg *Logger) *plinth.Error {
		return lg.SetLevel(level)
	}
}

// WithIndent sets the number of spaces each line is indented per depth
// step passed to the output calls.
func WithIndent(indent int) Option {
	return func(lg *Logger) *plinth.Error {
		return lg.SetIndent(indent)
	}
}

// WithComm tags every line with the calling rank of c.
func WithComm(c *comm.Comm) Option {
	return func(lg *Logger) *plinth.Error {
		return lg.SetComm(c)
	}
}

// WithOutput directs the log to w instead of standard error.
func WithOutput(w io.Writer) Option {
	return func(lg *Logger) *plinth.Error {
		return lg.SetOutput(w)
	}
}

// WithHandler installs a custom slog handler, overriding level and
// output.
func WithHandler(h slog.Handler) Option {
	return func(lg *Logger) *plinth.Error {
		return lg.SetHandler(h)
	}
}

// New creates a logger in its NEW phase and applies the given options.
// The defaults are level info, no indentation, rank 0 and standard error.
func New(opts ...Option) (*Logger, *plinth.Error) {
	lg := &Logger{
		level: slog.LevelInfo,
		out:   os.Stderr,
	}
	lg.rc.Init()
	for _, opt := range opts {
		if err := opt(lg); err != nil {
			return nil, plinth.Wrap(err, "logx new: option")
		}
	}
	return lg, nil
}

// IsValid reports whether lg is non-nil and internally consistent.
func IsValid(lg *Logger) (bool, string) {
	if lg == nil {
		return false, "logger is nil"
	}
	if !lg.rc.IsValid() {
		return false, "reference count not valid"
	}
	if lg.indent < 0 {
		return false, "negative indent"
	}
	if lg.setup && lg.sl == nil {
		return false, "setup logger without sink"
	}
	return true, ""
}

// IsNew reports whether lg is valid and still configurable.
func IsNew(lg *Logger) (bool, string) {
	if ok, reason := IsValid(lg); !ok {
		return false, reason
	}
	if lg.setup {
		return false, "logger already setup"
	}
	return true, ""
}

// IsSetup reports whether lg is valid and in its usage phase.
func IsSetup(lg *Logger) (bool, string) {
	if ok, reason := IsValid(lg); !ok {
		return false, reason
	}
	if !lg.setup {
		return false, "logger not setup"
	}
	return true, ""
}

// SetLevel sets the minimum level. Legal only in the NEW phase.
func (lg *Logger) SetLevel(level slog.Level) *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "SetLevel: "+reason)
	}
	lg.level = level
	return nil
}

// SetIndent sets the per-depth indentation. Legal only in the NEW phase.
func (lg *Logger) SetIndent(indent int) *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "SetIndent: "+reason)
	}
	if indent < 0 {
		return plinth.Demand(false, "SetIndent: negative indent")
	}
	lg.indent = indent
	return nil
}

// SetComm records the calling rank of c as the rank tag of every line.
// Legal only in the NEW phase.
func (lg *Logger) SetComm(c *comm.Comm) *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "SetComm: "+reason)
	}
	rank, err := c.Rank()
	if err != nil {
		return plinth.Wrap(err, "SetComm: rank")
	}
	lg.rank = rank
	return nil
}

// SetOutput directs the log to w. Legal only in the NEW phase.
func (lg *Logger) SetOutput(w io.Writer) *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "SetOutput: "+reason)
	}
	if w == nil {
		return plinth.Demand(false, "SetOutput: nil writer")
	}
	lg.out = w
	return nil
}

// SetHandler installs a custom slog handler. Legal only in the NEW phase.
func (lg *Logger) SetHandler(h slog.Handler) *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "SetHandler: "+reason)
	}
	lg.handler = h
	return nil
}

// Setup transitions the logger into its usage phase, building the slog
// sink from the configuration.
func (lg *Logger) Setup() *plinth.Error {
	if ok, reason := IsNew(lg); !ok {
		return plinth.Demand(false, "Setup: "+reason)
	}
	h := lg.handler
	if h == nil {
		h = slog.NewTextHandler(lg.out, &slog.HandlerOptions{Level: lg.level})
	}
	lg.sl = slog.New(h).With("rank", lg.rank)
	lg.setup = true
	return nil
}

// Log writes msg at the given level and depth with optional attributes.
// Calling a logger that is not setup is quietly ignored; logging must
// never turn into a second failure while one is being reported.
func (lg *Logger) Log(level slog.Level, depth int, msg string, args ...any) {
	if ok, _ := IsSetup(lg); !ok {
		return
	}
	if depth > 0 && lg.indent > 0 {
		msg = strings.Repeat(" ", depth*lg.indent) + msg
	}
	lg.sl.Log(context.Background(), level, msg, args...)
}

// Debug writes msg at debug level and depth 0.
func (lg *Logger) Debug(msg string, args ...any) {
	lg.Log(slog.LevelDebug, 0, msg, args...)
}

// Info writes msg at info level and depth 0.
func (lg *Logger) Info(msg string, args ...any) {
	lg.Log(slog.LevelInfo, 0, msg, args...)
}

// Error writes msg at error level and depth 0.
func (lg *Logger) Error(msg string, args ...any) {
	lg.Log(slog.LevelError, 0, msg, args...)
}

// Report consumes *pe, logs it under prefix and decides how to continue.
//
// A nil handle or error is a bad call convention that is reported and
// accepted. A leak is flattened, logged and survived. Anything else is
// fatal: it is flattened and logged, and Report returns true to tell the
// caller to stop using the affected objects. The handle is nil afterwards
// in every case.
func (lg *Logger) Report(prefix string, pe **plinth.Error) bool {
	if pe == nil || *pe == nil {
		lg.Log(slog.LevelError, 0, prefix+": no error")
		return false
	}
	if ok, _ := plinth.IsLeak(*pe); ok {
		lg.Log(slog.LevelError, 0, prefix+": "+plinth.DestroyNoerr(pe))
		return false
	}
	lg.Log(slog.LevelError, 0, prefix+": "+plinth.DestroyNoerr(pe))
	return true
}

// Ref adds a reference to a setup logger.
func (lg *Logger) Ref() *plinth.Error {
	if ok, reason := IsSetup(lg); !ok {
		return plinth.Demand(false, "Ref: "+reason)
	}
	if err := lg.rc.Ref(); err != nil {
		return plinth.Demand(false, "Ref: "+err.Error())
	}
	return nil
}

// Unref removes a reference. The sink is dropped when the last reference
// goes away.
func (lg *Logger) Unref() *plinth.Error {
	if ok, reason := IsSetup(lg); !ok {
		return plinth.Demand(false, "Unref: "+reason)
	}
	last, err := lg.rc.Unref()
	if err != nil {
		return plinth.Demand(false, "Unref: "+err.Error())
	}
	if last {
		lg.sl = nil
		lg.setup = false
	}
	return nil
}

// Destroy takes a logger with one remaining reference, drops it and nils
// the caller's pointer. Destroying a multiply referenced logger consumes
// the reference and reports an error of kind Leak.
func Destroy(lp **Logger) *plinth.Error {
	if lp == nil || *lp == nil {
		return plinth.Demand(false, "Destroy: nil logger pointer")
	}
	lg := *lp
	*lp = nil
	var leak *plinth.Error
	if lg.rc.Count() > 1 {
		leak = plinth.NewLeak(
			"logger destroyed with references outstanding")
	}
	if err := lg.Unref(); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	return leak
}

// Predef returns a process-wide logger that is always available, even
// before any object of this package is setup. It writes to standard
// error at info level and takes no part in reference counting.
func Predef() *Logger {
	return predef
}

var predef = func() *Logger {
	lg := &Logger{level: slog.LevelInfo, out: os.Stderr}
	lg.rc.Init()
	lg.sl = slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelInfo})).With("rank", 0)
	lg.setup = true
	return lg
}()

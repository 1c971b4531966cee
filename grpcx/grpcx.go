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

// Package grpcx projects substrate errors onto gRPC.
//
// A setup error maps to a google.golang.org/grpc/status Status whose code
// derives from the error kind and whose details carry a google.rpc
// ErrorInfo with the kind and failure location, plus a DebugInfo listing
// the cause chain link by link. The projection borrows the error; it never
// consumes a reference.
package grpcx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"plinth.dev/plinth"
	"plinth.dev/plinth/kind"
)

// Domain tags every ErrorInfo detail emitted by this package.
const Domain = "plinth.dev"

var codeOf = map[kind.Kind]codes.Code{
	kind.Fatal:   codes.Internal,
	kind.Warning: codes.FailedPrecondition,
	kind.Runtime: codes.Aborted,
	kind.Bug:     codes.Internal,
	kind.Memory:  codes.ResourceExhausted,
	kind.Network: codes.Unavailable,
	kind.Leak:    codes.FailedPrecondition,
	kind.IO:      codes.DataLoss,
	kind.User:    codes.InvalidArgument,
}

// Code returns the gRPC status code for an error kind. Kinds outside the
// known set map to codes.Internal.
func Code(k kind.Kind) codes.Code {
	if c, ok := codeOf[k]; ok {
		return c
	}
	return codes.Internal
}

func discard(err *plinth.Error) {
	if err != nil {
		plinth.DestroyNoerr(&err)
	}
}

// stackEntries renders the cause chain below e, outermost cause first,
// one line per link. The traversal takes and releases a reference per
// link so it stays correct if the receiver is shared.
func stackEntries(e *plinth.Error) []string {
	var entries []string
	cur, gerr := e.GetStack()
	if gerr != nil {
		discard(gerr)
		return nil
	}
	for cur != nil {
		k, kerr := cur.GetKind()
		discard(kerr)
		msg, merr := cur.GetMessage()
		discard(merr)
		file, line, lerr := cur.GetLocation()
		discard(lerr)
		if file == "" && line == 0 {
			entries = append(entries, fmt.Sprintf("%s %s", k, msg))
		} else {
			entries = append(entries,
				fmt.Sprintf("%s (%s:%d) %s", k, file, line, msg))
		}
		next, gerr := cur.GetStack()
		discard(gerr)
		if uerr := plinth.Unref(&cur); uerr != nil {
			discard(uerr)
		}
		cur = next
	}
	return entries
}

// ToStatus converts a setup error into a gRPC status with ErrorInfo and
// DebugInfo details. The error is borrowed, not consumed. A nil error
// yields a nil status.
func ToStatus(e *plinth.Error) *status.Status {
	if e == nil {
		return nil
	}
	k, kerr := e.GetKind()
	discard(kerr)
	msg, merr := e.GetMessage()
	discard(merr)
	file, line, lerr := e.GetLocation()
	discard(lerr)

	base := status.New(Code(k), msg)

	info := &errdetails.ErrorInfo{
		Reason: strings.ToUpper(k.String()),
		Domain: Domain,
	}
	if file != "" || line != 0 {
		info.Metadata = map[string]string{
			"file": file,
			"line": strconv.Itoa(line),
		}
	}
	dbg := &errdetails.DebugInfo{
		StackEntries: stackEntries(e),
		Detail:       e.Error(),
	}

	with, err := base.WithDetails(info, dbg)
	if err != nil {
		return base
	}
	return with
}

// Error converts a setup error into a plain gRPC error, ready to return
// from a handler. A nil input yields nil.
func Error(e *plinth.Error) error {
	if e == nil {
		return nil
	}
	return ToStatus(e).Err()
}

// UnaryServerInterceptor returns an interceptor that converts substrate
// errors escaping a handler into gRPC status errors. Other errors pass
// through unchanged.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		var pe *plinth.Error
		if !errors.As(err, &pe) {
			return nil, err
		}
		return nil, ToStatus(pe).Err()
	}
}

// ExtractErrorInfo pulls the ErrorInfo detail out of a gRPC error, if
// present. Useful in tests and client code.
func ExtractErrorInfo(err error) (*errdetails.ErrorInfo, bool) {
	if err == nil {
		return nil, false
	}
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info, true
		}
	}
	return nil, false
}

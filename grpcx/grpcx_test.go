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

package grpcx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"plinth.dev/plinth"
	"plinth.dev/plinth/kind"
)

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		k    kind.Kind
		want codes.Code
	}{
		{kind.Fatal, codes.Internal},
		{kind.Bug, codes.Internal},
		{kind.Memory, codes.ResourceExhausted},
		{kind.Network, codes.Unavailable},
		{kind.Leak, codes.FailedPrecondition},
		{kind.Warning, codes.FailedPrecondition},
		{kind.Runtime, codes.Aborted},
		{kind.IO, codes.DataLoss},
		{kind.User, codes.InvalidArgument},
		{kind.Kind(99), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.k), "kind %v", tt.k)
	}
}

func TestToStatus(t *testing.T) {
	assert.Nil(t, ToStatus(nil))

	inner := plinth.NewKind(kind.IO, "disk.c", 5, "short read")
	e, ferr := plinth.New(nil)
	require.Nil(t, ferr)
	require.Nil(t, e.SetKind(kind.Runtime))
	require.Nil(t, e.SetMessage("loading input"))
	require.Nil(t, e.SetLocation("work.c", 9))
	require.Nil(t, e.SetStack(&inner))
	require.Nil(t, e.Setup())

	st := ToStatus(e)
	require.NotNil(t, st)
	assert.Equal(t, codes.Aborted, st.Code())
	assert.Equal(t, "loading input", st.Message())

	info, ok := ExtractErrorInfo(st.Err())
	require.True(t, ok, "ErrorInfo detail missing")
	assert.Equal(t, "RUNTIME", info.GetReason())
	assert.Equal(t, Domain, info.GetDomain())
	assert.Equal(t, "work.c", info.GetMetadata()["file"])
	assert.Equal(t, "9", info.GetMetadata()["line"])

	var foundDebug bool
	for _, d := range st.Details() {
		if dbg, ok := d.(interface{ GetStackEntries() []string }); ok {
			entries := dbg.GetStackEntries()
			require.Len(t, entries, 1)
			assert.Contains(t, entries[0], "short read")
			foundDebug = true
		}
	}
	assert.True(t, foundDebug, "DebugInfo detail missing")

	// the projection borrowed the error, one reference remains
	require.Nil(t, plinth.Destroy(&e))
}

func TestErrorNil(t *testing.T) {
	assert.NoError(t, Error(nil))
}

func TestUnaryServerInterceptor(t *testing.T) {
	icpt := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/plinth.test/Probe"}

	// success passes through
	resp, err := icpt(context.Background(), nil, info,
		func(context.Context, any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	// foreign errors pass through untouched
	plain := errors.New("not ours")
	_, err = icpt(context.Background(), nil, info,
		func(context.Context, any) (any, error) { return nil, plain })
	assert.Equal(t, plain, err)

	// substrate errors become gRPC status errors
	_, err = icpt(context.Background(), nil, info,
		func(context.Context, any) (any, error) {
			return nil, plinth.NewKind(kind.User, "api.c", 9, "bad request")
		})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "bad request", st.Message())

	ei, ok := ExtractErrorInfo(err)
	require.True(t, ok)
	assert.Equal(t, "USER", ei.GetReason())
}

func TestExtractErrorInfoMisses(t *testing.T) {
	if _, ok := ExtractErrorInfo(nil); ok {
		t.Fatal("ExtractErrorInfo(nil) reported a detail")
	}
	if _, ok := ExtractErrorInfo(errors.New("plain")); ok {
		t.Fatal("ExtractErrorInfo on a plain error reported a detail")
	}
}

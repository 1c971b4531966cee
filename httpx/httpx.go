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

// Package httpx projects substrate errors onto HTTP.
//
// The response body is the google.rpc.Status representation of the error,
// serialized with protojson, so HTTP and gRPC clients see the same
// structure including the ErrorInfo and DebugInfo details assembled by
// the grpcx package. The HTTP status derives from the error kind.
package httpx

import (
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"

	"plinth.dev/plinth"
	"plinth.dev/plinth/grpcx"
	"plinth.dev/plinth/kind"
)

var statusOf = map[kind.Kind]int{
	kind.Fatal:   http.StatusInternalServerError,
	kind.Warning: http.StatusConflict,
	kind.Runtime: http.StatusConflict,
	kind.Bug:     http.StatusInternalServerError,
	kind.Memory:  http.StatusInsufficientStorage,
	kind.Network: http.StatusServiceUnavailable,
	kind.Leak:    http.StatusConflict,
	kind.IO:      http.StatusServiceUnavailable,
	kind.User:    http.StatusBadRequest,
}

// Status returns the HTTP status code for an error kind. Kinds outside
// the known set map to 500.
func Status(k kind.Kind) int {
	if s, ok := statusOf[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Write serializes a setup error as a google.rpc.Status JSON body and
// writes it to the response writer. The error is borrowed, not consumed.
// A nil error writes nothing.
//
// No redaction is performed: message, location and cause chain are
// exposed as-is. Handlers facing untrusted clients should apply policy
// before calling Write.
func Write(rw http.ResponseWriter, e *plinth.Error) {
	if e == nil {
		return
	}

	k, kerr := e.GetKind()
	if kerr != nil {
		plinth.DestroyNoerr(&kerr)
	}
	st := grpcx.ToStatus(e)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(Status(k))

	// protojson, not encoding/json: the details are packed into Any
	// messages that only protojson renders by their type URL.
	b, err := (protojson.MarshalOptions{
		EmitUnpopulated: false,
		UseProtoNames:   false,
	}).Marshal(st.Proto())
	if err != nil {
		return
	}
	_, _ = rw.Write(b)
}

/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's global encoding registry and
// advertised in the "grpc-encoding"/content-subtype of every request this
// server's client stubs make.
const codecName = "varbridge-json"

// jsonCodec implements encoding.Codec over plain JSON. The wire schema in
// §6 is expressed here as Go structs rather than generated protobuf code:
// no .proto toolchain is available in this build environment, and
// grpc-go's codec is a first-class extension point for exactly this
// case — the transport, framing, streaming, and deadline machinery of
// google.golang.org/grpc is exercised unchanged, only the marshal step is
// swapped out.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("varbridge-json: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("varbridge-json: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

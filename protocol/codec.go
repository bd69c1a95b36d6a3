// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0
)

// Codec does serialization and deserialization of every consensus object.
// Operation types are registered in OpType order, so the wire type id of an
// operation equals its OpType and an unknown kind fails at decode time.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	for i, op := range operationPrototypes() {
		if op.Type() != OpType(i) {
			panic(fmt.Sprintf("operation %T registered at %d but has type %d", op, i, op.Type()))
		}
		errs.Add(c.RegisterType(op))
	}
	errs.Add(Codec.RegisterCodec(CodecVersion, c))
	if errs.Errored() {
		panic(errs.Err)
	}
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ava-labs/witnessvm/state"
)

// Transaction rejections.
var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrTransactionExpired   = errors.New("transaction expired")
	ErrExpirationTooFar     = errors.New("transaction expiration too far in the future")
	ErrTaPoS                = errors.New("transaction references an unknown block")
	ErrTransactionTooLarge  = errors.New("transaction too large")
	ErrMissingAuthority     = errors.New("missing required authority")
	ErrIrrelevantSignature  = errors.New("irrelevant signature included")
	ErrDuplicateSignature   = errors.New("duplicate signature included")
)

// Block rejections.
var (
	ErrUnlinkableBlock     = errors.New("block does not link to the head")
	ErrBlockTime           = errors.New("invalid block time")
	ErrWrongWitness        = errors.New("block produced by the wrong witness")
	ErrBadWitnessSignature = errors.New("invalid witness signature")
	ErrMerkleMismatch      = errors.New("transaction merkle root mismatch")
	ErrBlockTooLarge       = errors.New("block too large")
	ErrUnknownBlock        = errors.New("unknown block")
	ErrPopIrreversible     = errors.New("cannot pop an irreversible block")
	ErrInvalidFastConfirm  = errors.New("invalid fast confirmation")
	ErrNotScheduled        = errors.New("witness is not scheduled")
	ErrClosed              = errors.New("chain is closed")
)

// ErrInvariantViolation marks failures that leave the chain unusable.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError is a fatal failure. The node must stop applying blocks.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInvariantViolation, e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

func (e *InvariantError) Is(target error) bool { return target == ErrInvariantViolation }

func invariant(op string, err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &InvariantError{Op: op, Err: err}
}

// IsFatal reports whether [err] is an invariant violation. Checkpoint misuse
// in the state store is one too.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, state.ErrSessionOrder) ||
		errors.Is(err, state.ErrSessionClosed)
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"errors"
	"fmt"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var (
	errMissingEvaluator   = errors.New("no evaluator registered")
	errDuplicateEvaluator = errors.New("evaluator already registered")
	errWrongOperation     = errors.New("operation does not match evaluator")
)

// Context carries everything an evaluator may depend on besides the
// operation. It is built per operation and never shared between goroutines.
type Context struct {
	Ledger *ledger.Ledger
	// BlockNum is the block being built or applied, head + 1 for pending
	// transactions.
	BlockNum uint32
	// Now is the head time transactions are evaluated at. End of block
	// processing sees the time of the block being applied.
	Now     uint32
	Witness string
	TxIndex int
	OpIndex int
	// LastHardfork is the highest applied hardfork index.
	LastHardfork uint32
	// Virtual applies and records a virtual operation produced as a side
	// effect.
	Virtual func(protocol.Operation) error
}

func (c *Context) HasHardfork(i uint32) bool { return c.LastHardfork >= i }

func (c *Context) virtual(op protocol.Operation) error {
	if c.Virtual == nil {
		return nil
	}
	return c.Virtual(op)
}

type evaluator func(*Context, protocol.Operation) error

// Registry maps every operation kind to its evaluator.
type Registry struct {
	table [protocol.NumOpTypes]evaluator
}

// Register installs [f] for operations of kind [t].
func Register[T protocol.Operation](r *Registry, t protocol.OpType, f func(*Context, T) error) error {
	if t >= protocol.NumOpTypes {
		return fmt.Errorf("%w: %s", errWrongOperation, t)
	}
	if r.table[t] != nil {
		return fmt.Errorf("%w: %s", errDuplicateEvaluator, t)
	}
	r.table[t] = func(ctx *Context, op protocol.Operation) error {
		typed, ok := op.(T)
		if !ok {
			return fmt.Errorf("%w: %T for %s", errWrongOperation, op, t)
		}
		return f(ctx, typed)
	}
	return nil
}

// Verify fails unless every operation kind has an evaluator.
func (r *Registry) Verify() error {
	for t, f := range r.table {
		if f == nil {
			return fmt.Errorf("%w: %s", errMissingEvaluator, protocol.OpType(t))
		}
	}
	return nil
}

// Apply dispatches [op] to its evaluator.
func (r *Registry) Apply(ctx *Context, op protocol.Operation) error {
	t := op.Type()
	if t >= protocol.NumOpTypes || r.table[t] == nil {
		return fmt.Errorf("%w: %s", errMissingEvaluator, t)
	}
	return r.table[t](ctx, op)
}

func noop[T protocol.Operation](*Context, T) error { return nil }

// NewDefault returns a registry with the built in evaluators.
func NewDefault() (*Registry, error) {
	r := &Registry{}
	for _, err := range []error{
		Register(r, protocol.TransferOp, applyTransfer),
		Register(r, protocol.TransferToVestingOp, applyTransferToVesting),
		Register(r, protocol.AccountCreateOp, applyAccountCreate),
		Register(r, protocol.AccountUpdateOp, applyAccountUpdate),
		Register(r, protocol.WitnessUpdateOp, applyWitnessUpdate),
		Register(r, protocol.AccountWitnessVoteOp, applyAccountWitnessVote),
		Register(r, protocol.FeedPublishOp, applyFeedPublish),
		Register(r, protocol.ConvertOp, applyConvert),
		Register(r, protocol.LimitOrderCreateOp, applyLimitOrderCreate),
		Register(r, protocol.LimitOrderCancelOp, applyLimitOrderCancel),
		Register(r, protocol.DelegateVestingSharesOp, applyDelegateVestingShares),
		Register(r, protocol.EscrowTransferOp, applyEscrowTransfer),
		Register(r, protocol.EscrowApproveOp, applyEscrowApprove),
		Register(r, protocol.EscrowReleaseOp, applyEscrowRelease),
		Register(r, protocol.RequestAccountRecoveryOp, applyRequestAccountRecovery),
		Register(r, protocol.RecoverAccountOp, applyRecoverAccount),
		Register(r, protocol.CustomOp, applyCustom),
		Register(r, protocol.CustomJSONOp, applyCustomJSON),
		Register(r, protocol.WitnessBlockApproveOp, applyWitnessBlockApprove),

		// virtual operations record effects already applied
		Register(r, protocol.ProducerRewardOp, noop[*protocol.ProducerReward]),
		Register(r, protocol.FillConvertRequestOp, noop[*protocol.FillConvertRequest]),
		Register(r, protocol.ExpiredOrderOp, noop[*protocol.ExpiredOrder]),
		Register(r, protocol.ReturnVestingDelegationOp, noop[*protocol.ReturnVestingDelegation]),
		Register(r, protocol.EscrowRejectedOp, noop[*protocol.EscrowRejected]),
		Register(r, protocol.ExpiredRecoveryRequestOp, noop[*protocol.ExpiredRecoveryRequest]),
		Register(r, protocol.ExpiredGovernanceVotesOp, noop[*protocol.ExpiredGovernanceVotes]),
		Register(r, protocol.ShutdownWitnessOp, noop[*protocol.ShutdownWitness]),
		Register(r, protocol.HardforkAppliedOp, noop[*protocol.HardforkApplied]),
	} {
		if err != nil {
			return nil, err
		}
	}
	if err := r.Verify(); err != nil {
		return nil, err
	}
	return r, nil
}

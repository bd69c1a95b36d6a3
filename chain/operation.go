// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// applyContext locates what is being applied. One is built per block, or per
// pending transaction, and threaded through every pass.
type applyContext struct {
	ledger *ledger.Ledger
	skip   Skip

	blockNum uint32
	blockID  ids.ID
	// now is the head time transactions are evaluated at. End of block passes
	// run at the new block's timestamp.
	now     uint32
	witness string
	block   *protocol.SignedBlock

	// hardfork is the last applied hardfork index
	hardfork uint32

	txIndex int
	txID    ids.ID
	opIndex int
}

func (a *applyContext) hasHardfork(i uint32) bool { return a.hardfork >= i }

func (a *applyContext) evaluatorContext(c *Chain) *evaluators.Context {
	return &evaluators.Context{
		Ledger:       a.ledger,
		BlockNum:     a.blockNum,
		Now:          a.now,
		Witness:      a.witness,
		TxIndex:      a.txIndex,
		OpIndex:      a.opIndex,
		LastHardfork: a.hardfork,
		Virtual: func(op protocol.Operation) error {
			return c.applyOperation(a, op, true)
		},
	}
}

// endOfBlock switches [a] to the passes run after the block's transactions.
func (a *applyContext) endOfBlock(timestamp uint32) {
	a.now = timestamp
	a.txIndex = -1
	a.txID = ids.Empty
	a.opIndex = 0
}

// applyOperation evaluates [op] between its pre and post apply
// notifications. Virtual operations record effects applied by their caller.
func (c *Chain) applyOperation(a *applyContext, op protocol.Operation, virtual bool) error {
	ev := &events.Event{
		Kind:      events.PreApplyOperation,
		BlockNum:  a.blockNum,
		BlockTime: a.now,
		BlockID:   a.blockID,
		TxIndex:   a.txIndex,
		OpIndex:   a.opIndex,
		TxID:      a.txID,
		Operation: op,
		Virtual:   virtual,
	}
	if err := c.bus.Publish(ev); err != nil {
		return err
	}

	ctx := a.evaluatorContext(c)
	if err := c.registry.Apply(ctx, op); err != nil {
		return c.classify(a, "apply "+op.Type().String(), err)
	}
	if !virtual {
		if err := c.meter.OnOperation(ctx, op); err != nil {
			return err
		}
	}
	if virtual && a.txIndex < 0 {
		a.opIndex++
	}

	post := *ev
	post.Kind = events.PostApplyOperation
	return c.bus.Publish(&post)
}

// classify turns balance and supply underflows into invariant violations
// once the strict supply hardfork is active. Before it they fail the
// transaction like any validation error.
func (c *Chain) classify(a *applyContext, op string, err error) error {
	if !a.hasHardfork(protocol.HardforkStrictSupply) {
		return err
	}
	if errors.Is(err, ledger.ErrNegativeBalance) || errors.Is(err, ledger.ErrSupplyUnderflow) {
		return invariant(op, err)
	}
	return err
}

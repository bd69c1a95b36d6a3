// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/forkdb"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// irreversibleRequired is how many of [n] scheduled witnesses must confirm a
// block for it to become irreversible: strictly more than the threshold.
func irreversibleRequired(n int) int {
	required := n*protocol.IrreversibleThresholdPercent/100 + 1
	if required > n {
		return n
	}
	return required
}

// updateIrreversible raises the last irreversible block number recorded in
// the global properties. It never moves back.
func (c *Chain) updateIrreversible(a *applyContext) error {
	l := a.ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	s, err := l.WitnessSchedule()
	if err != nil {
		return err
	}
	n := s.NumScheduled()
	if n == 0 {
		return nil
	}
	required := irreversibleRequired(n)

	var candidate uint32
	if a.hasHardfork(protocol.HardforkFastConfirm) {
		// producing a block approves it and its ancestors
		if _, err := c.forks.Approve(a.witness, a.blockID); err != nil {
			c.log.Debug("block is not in the fork database", "num", a.blockNum, "id", a.blockID, "err", err)
		}
		candidate = c.irreversibleCandidate(a.blockID, s.CurrentShuffledWitnesses, required)
	} else {
		confirmed := make([]uint32, 0, n)
		for _, name := range s.CurrentShuffledWitnesses {
			w, err := l.Witness(name)
			if err != nil {
				return err
			}
			confirmed = append(confirmed, w.LastConfirmedBlockNum)
		}
		sort.Slice(confirmed, func(i, j int) bool { return confirmed[i] < confirmed[j] })
		candidate = confirmed[n-required]
	}

	if candidate > a.blockNum {
		candidate = a.blockNum
	}
	if candidate <= g.LastIrreversibleBlockNum {
		return nil
	}
	g.LastIrreversibleBlockNum = candidate
	return l.PutGlobalProperties(g)
}

// irreversibleCandidate returns the highest block on the branch ending at
// [headID] that [required] of [witnesses] approved. A better block on another
// branch is deferred until fork choice settles.
func (c *Chain) irreversibleCandidate(headID ids.ID, witnesses []string, required int) uint32 {
	best := c.forks.BestDescendant(witnesses, required)
	if best == nil {
		return 0
	}
	if item, err := c.forks.FetchOnBranch(best.Num, headID); err == nil && item.ID == best.ID {
		return best.Num
	}
	c.log.Warn("deferring irreversible block on another branch", "num", best.Num, "id", best.ID)
	c.deferredIrreversible = best.ID
	return 0
}

// resolveDeferred switches to the branch holding a deferred irreversible
// block unless that would lower the head.
func (c *Chain) resolveDeferred(skip Skip) error {
	blkID := c.deferredIrreversible
	if blkID == ids.Empty {
		return nil
	}
	c.deferredIrreversible = ids.Empty
	tip, ok := c.forks.Tip(blkID)
	if !ok {
		return nil
	}
	g, err := c.headProperties()
	if err != nil {
		return err
	}
	if tip.ID == g.HeadBlockID || tip.Num < g.HeadBlockNumber {
		return nil
	}
	return c.switchFork(tip.ID, skip)
}

// migrateIrreversible flushes every block up to the recorded irreversible
// number: blocks go to the block log, state to the database, and the fork
// database is rerooted.
func (c *Chain) migrateIrreversible() error {
	g, err := c.headProperties()
	if err != nil {
		return err
	}
	base := uint32(c.store.BaseRevision())
	lib := g.LastIrreversibleBlockNum
	if lib <= base {
		return nil
	}

	items := make([]*forkdb.Item, 0, lib-base)
	for num := base + 1; num <= lib; num++ {
		item, err := c.forks.FetchOnBranch(num, g.HeadBlockID)
		if err != nil {
			return invariant("migrate irreversible", err)
		}
		items = append(items, item)
	}
	for _, item := range items {
		if item.Num <= c.logHead {
			continue
		}
		if err := c.blocks.Append(item.Block); err != nil {
			return fmt.Errorf("failed to append block %d to the block log: %w", item.Num, err)
		}
		c.logHead = item.Num
	}
	if err := c.store.Commit(uint64(lib)); err != nil {
		return invariant("commit irreversible state", err)
	}
	if err := c.forks.Prune(items[len(items)-1].ID); err != nil {
		return invariant("prune fork database", err)
	}

	for _, item := range items {
		if err := c.bus.Publish(&events.Event{
			Kind:      events.IrreversibleBlock,
			BlockNum:  item.Num,
			BlockTime: item.Block.Timestamp,
			BlockID:   item.ID,
			Block:     item.Block,
		}); err != nil {
			return err
		}
	}

	if interval := c.config.IrreversibleLogInterval; interval > 0 && lib/interval != base/interval {
		c.log.Info("advanced irreversible block", "num", lib, "id", items[len(items)-1].ID)
	}
	if interval := c.config.FlushInterval; interval > 0 && lib/interval != base/interval {
		if err := c.store.Compact(); err != nil {
			c.log.Warn("failed to compact database", "err", err)
		}
	}
	c.metrics.irreversibleBlock.Set(float64(lib))
	return nil
}

// PushFastConfirm records a scheduled witness's approval of a block and
// advances irreversibility if it completes a supermajority. [tx] holds a
// single WitnessBlockApprove signed with the witness signing key.
func (c *Chain) PushFastConfirm(tx *protocol.SignedTransaction) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(tx.Operations) != 1 {
		return fmt.Errorf("%w: expected one operation, got %d", ErrInvalidFastConfirm, len(tx.Operations))
	}
	op, ok := tx.Operations[0].(*protocol.WitnessBlockApprove)
	if !ok {
		return fmt.Errorf("%w: unexpected %s", ErrInvalidFastConfirm, tx.Operations[0].Type())
	}
	if err := op.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFastConfirm, err)
	}

	l := ledger.New(c.store.DB())
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	hp, err := l.HardforkProperty()
	if err != nil {
		return err
	}
	if hp.LastHardfork < protocol.HardforkFastConfirm {
		return fmt.Errorf("%w: fast confirmations are not active", ErrInvalidFastConfirm)
	}
	if tx.Expiration <= g.Time {
		return fmt.Errorf("%w: expiration %d, head time %d", ErrTransactionExpired, tx.Expiration, g.Time)
	}
	s, err := l.WitnessSchedule()
	if err != nil {
		return err
	}
	if !isScheduled(s, op.Witness) {
		return fmt.Errorf("%w: %q", ErrNotScheduled, op.Witness)
	}
	w, err := l.Witness(op.Witness)
	if err != nil {
		return err
	}
	a := &applyContext{now: g.Time, hardfork: hp.LastHardfork}
	signed := false
	for _, chainID := range signingChainIDs(a, g) {
		keys, err := tx.SignatureKeys(chainID)
		if err == nil && len(keys) == 1 && keys[0] == w.SigningKey {
			signed = true
			break
		}
	}
	if !signed {
		return fmt.Errorf("%w: not signed by the signing key of %q", ErrInvalidFastConfirm, op.Witness)
	}

	updated, err := c.forks.Approve(op.Witness, op.BlockID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownBlock, err)
	}
	if !updated {
		return nil
	}

	pending := c.clearPending()
	defer func() {
		c.restorePending(pending)
		c.updateHeadMetrics()
	}()
	if err := c.advanceIrreversible(s); err != nil {
		return err
	}
	if err := c.resolveDeferred(SkipNothing); err != nil {
		return err
	}
	return c.migrateIrreversible()
}

func isScheduled(s *ledger.WitnessSchedule, name string) bool {
	for _, w := range s.CurrentShuffledWitnesses {
		if w == name {
			return true
		}
	}
	return false
}

// advanceIrreversible records a new irreversible block found from
// approvals alone. The record is folded into the head block's state.
func (c *Chain) advanceIrreversible(s *ledger.WitnessSchedule) error {
	g, err := c.headProperties()
	if err != nil {
		return err
	}
	n := s.NumScheduled()
	candidate := c.irreversibleCandidate(g.HeadBlockID, s.CurrentShuffledWitnesses, irreversibleRequired(n))
	if candidate <= g.LastIrreversibleBlockNum {
		return nil
	}

	sess := c.store.Begin()
	l := ledger.New(sess.DB())
	g.LastIrreversibleBlockNum = candidate
	if err := l.PutGlobalProperties(g); err != nil {
		if uerr := sess.Undo(); uerr != nil {
			return invariant("undo irreversible update", uerr)
		}
		return err
	}
	if err := sess.Squash(); err != nil {
		return invariant("squash irreversible update", err)
	}
	return nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
	"github.com/ava-labs/witnessvm/state"
)

// headerReserve is left out of the maximum block size for the header.
const headerReserve = 256

// GenerateBlock produces, signs and applies the block of [witness] for the
// slot [when] falls in. A zero [when] means the clock's current time.
// Pending transactions are included in order while they fit; the rest stay
// pending.
func (c *Chain) GenerateBlock(when uint32, witness string, key *btcec.PrivateKey, skip Skip) (_ *protocol.SignedBlock, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if when == 0 {
		when = uint32(c.clock.Time().Unix())
	}

	l := ledger.New(c.store.DB())
	g, err := l.GlobalProperties()
	if err != nil {
		return nil, err
	}
	slot := slotAtTime(g, when)
	if slot == 0 {
		return nil, fmt.Errorf("%w: %d is not after head time %d", ErrBlockTime, when, g.Time)
	}
	s, err := l.WitnessSchedule()
	if err != nil {
		return nil, err
	}
	if scheduled := scheduledWitness(g, s, slot); scheduled != witness {
		return nil, fmt.Errorf("%w: slot %d belongs to %q, not %q", ErrNotScheduled, slot, scheduled, witness)
	}
	w, err := l.Witness(witness)
	if err != nil {
		return nil, err
	}
	if !skip.has(SkipWitnessSignature) && protocol.PublicKeyOf(key) != w.SigningKey {
		return nil, fmt.Errorf("%w: key does not match the signing key of %q", ErrBadWitnessSignature, witness)
	}

	pending := c.clearPending()
	defer func() {
		if !IsFatal(err) {
			c.restorePending(pending)
		}
		c.updateHeadMetrics()
	}()

	included, err := c.selectTransactions(pending)
	if err != nil {
		return nil, err
	}
	// pending state is gone, read the head again
	hp, err := ledger.New(c.store.DB()).HardforkProperty()
	if err != nil {
		return nil, err
	}

	blk := &protocol.SignedBlock{}
	blk.Previous = g.HeadBlockID
	blk.Timestamp = slotTime(g, slot)
	blk.Witness = witness
	blk.Version = protocol.ProtocolVersion
	if next := hp.LastHardfork + 1; next < protocol.NumHardforks && next <= c.hardforkVote {
		blk.HardforkVote = c.genesis.Hardforks[next].Version
		blk.HardforkVoteTime = c.genesis.Hardforks[next].Time
	}
	blk.Transactions = included
	if blk.TransactionMerkleRoot, err = blk.MerkleRoot(); err != nil {
		return nil, err
	}
	if err := blk.Sign(key); err != nil {
		return nil, err
	}
	if err := c.pushBlock(blk, skip); err != nil {
		return nil, err
	}
	return blk, nil
}

// selectTransactions applies [pending] in a scratch session and returns the
// ones that succeed and fit in a block. The scratch state is discarded.
func (c *Chain) selectTransactions(pending []*protocol.SignedTransaction) ([]protocol.SignedTransaction, error) {
	scratch := c.store.Begin()
	g, err := ledger.New(scratch.DB()).GlobalProperties()
	if err != nil {
		return nil, c.undo(scratch, err)
	}
	budget := int(g.MaximumBlockSize) - headerReserve

	var (
		included []protocol.SignedTransaction
		size     int
	)
	for _, tx := range pending {
		raw, err := tx.Bytes()
		if err != nil || size+len(raw) > budget {
			continue
		}
		sess := c.store.Begin()
		a, err := c.pendingContext(ledger.New(sess.DB()))
		if err == nil {
			a.txIndex = len(included)
			err = c.applyTransaction(a, tx)
		}
		if err != nil {
			if uerr := sess.Undo(); uerr != nil {
				return nil, invariant("undo transaction", uerr)
			}
			if IsFatal(err) {
				return nil, c.undo(scratch, err)
			}
			c.log.Debug("leaving transaction out of block", "err", err)
			continue
		}
		if err := sess.Squash(); err != nil {
			return nil, invariant("squash transaction", err)
		}
		included = append(included, *tx)
		size += len(raw)
	}
	return included, c.undo(scratch, nil)
}

// undo discards [sess] and returns [err].
func (*Chain) undo(sess *state.Session, err error) error {
	if uerr := sess.Undo(); uerr != nil {
		return invariant("undo session", uerr)
	}
	return err
}

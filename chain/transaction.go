// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/protocol"
)

// applyTransaction validates [tx] and applies its operations into [a]'s
// ledger. The caller owns the checkpoint that discards a failed transaction.
func (c *Chain) applyTransaction(a *applyContext, tx *protocol.SignedTransaction) error {
	l := a.ledger
	txID, err := tx.ID()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if !a.skip.has(SkipTransactionDupeCheck) {
		known, err := l.IsKnownTransaction(txID)
		if err != nil {
			return err
		}
		if known {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, txID)
		}
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	raw, err := tx.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	if limit := g.MaximumBlockSize * protocol.MaxTransactionSizePercent / 100; uint32(len(raw)) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTransactionTooLarge, len(raw), limit)
	}

	if !a.skip.has(SkipTaPoSCheck) {
		summary, err := l.BlockSummary(uint32(tx.RefBlockNum))
		switch {
		case err == database.ErrNotFound:
			return fmt.Errorf("%w: no block %d", ErrTaPoS, tx.RefBlockNum)
		case err != nil:
			return err
		case protocol.RefPrefix(summary.BlockID) != tx.RefBlockPrefix:
			return fmt.Errorf("%w: prefix %d does not match block %d", ErrTaPoS, tx.RefBlockPrefix, tx.RefBlockNum)
		}
	}

	// a transaction expiring exactly at head time is still valid until the
	// strict expiration hardfork
	expired := tx.Expiration < a.now
	if a.hasHardfork(protocol.HardforkStrictExpiration) {
		expired = tx.Expiration <= a.now
	}
	if expired {
		return fmt.Errorf("%w: expiration %d, head time %d", ErrTransactionExpired, tx.Expiration, a.now)
	}
	if tx.Expiration > a.now+protocol.MaxTimeUntilExpiration {
		return fmt.Errorf("%w: expiration %d, head time %d", ErrExpirationTooFar, tx.Expiration, a.now)
	}

	if !a.skip.has(SkipTransactionSignatures) {
		if err := c.verifyAuthority(a, g, tx); err != nil {
			return err
		}
	}

	if err := l.RecordTransaction(txID, tx.Expiration); err != nil {
		return err
	}
	a.txID = txID
	ev := &events.Event{
		Kind:        events.PreApplyTransaction,
		BlockNum:    a.blockNum,
		BlockTime:   a.now,
		BlockID:     a.blockID,
		TxIndex:     a.txIndex,
		TxID:        txID,
		Transaction: tx,
	}
	if err := c.bus.Publish(ev); err != nil {
		return err
	}
	for i, op := range tx.Operations {
		a.opIndex = i
		if err := c.applyOperation(a, op, false); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op.Type(), err)
		}
	}
	if err := c.meter.OnTransaction(a.evaluatorContext(c), tx, len(raw)); err != nil {
		return err
	}
	post := *ev
	post.Kind = events.PostApplyTransaction
	return c.bus.Publish(&post)
}

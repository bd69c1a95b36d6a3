// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// PushTransaction applies [tx] on top of the pending state. A rejected
// transaction leaves the pending state unchanged.
func (c *Chain) PushTransaction(tx *protocol.SignedTransaction) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}
	err := c.pushTransaction(tx)
	if err != nil {
		c.metrics.transactionsRejected.Inc()
	} else {
		c.metrics.transactionsAccepted.Inc()
	}
	c.metrics.pendingTransactions.Set(float64(len(c.pending)))
	return err
}

// pushTransaction opens the pending session on the first submission after a
// block, then applies [tx] inside its own session.
func (c *Chain) pushTransaction(tx *protocol.SignedTransaction) error {
	if c.pendingSession == nil {
		c.pendingSession = c.store.Begin()
	}
	sess := c.store.Begin()
	a, err := c.pendingContext(ledger.New(sess.DB()))
	if err == nil {
		err = c.applyTransaction(a, tx)
	}
	if err != nil {
		if uerr := sess.Undo(); uerr != nil {
			return invariant("undo transaction", uerr)
		}
		return err
	}
	if err := sess.Squash(); err != nil {
		return invariant("squash transaction", err)
	}
	c.pending = append(c.pending, tx)
	return nil
}

// pendingContext evaluates transactions as if they were in the next block.
func (c *Chain) pendingContext(l *ledger.Ledger) (*applyContext, error) {
	g, err := l.GlobalProperties()
	if err != nil {
		return nil, err
	}
	hp, err := l.HardforkProperty()
	if err != nil {
		return nil, err
	}
	return &applyContext{
		ledger:   l,
		blockNum: g.HeadBlockNumber + 1,
		now:      g.Time,
		hardfork: hp.LastHardfork,
		txIndex:  len(c.pending),
	}, nil
}

// ClearPending discards every pending transaction. It is a no-op when there
// are none.
func (c *Chain) ClearPending() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.clearPending()
	c.metrics.pendingTransactions.Set(0)
}

// clearPending undoes the pending session and returns the transactions it
// held.
func (c *Chain) clearPending() []*protocol.SignedTransaction {
	if c.pendingSession != nil {
		if err := c.pendingSession.Undo(); err != nil {
			c.log.Error("failed to discard pending state", "err", err)
		}
		c.pendingSession = nil
	}
	pending := c.pending
	c.pending = nil
	return pending
}

// restorePending reapplies transactions of popped blocks, then [previous].
// Transactions that no longer apply are dropped.
func (c *Chain) restorePending(previous []*protocol.SignedTransaction) {
	txs := append(c.popped, previous...)
	c.popped = nil

	limit := c.config.PendingRetryLimit
	for i, tx := range txs {
		if limit > 0 && i >= limit {
			c.log.Warn("dropping pending transactions over the retry limit", "dropped", len(txs)-i)
			break
		}
		txID, err := tx.ID()
		if err != nil {
			continue
		}
		known, err := ledger.New(c.store.DB()).IsKnownTransaction(txID)
		if err != nil {
			c.log.Error("failed to check pending transaction", "txID", txID, "err", err)
			return
		}
		if known {
			continue
		}
		if err := c.pushTransaction(tx); err != nil {
			if IsFatal(err) {
				c.log.Error("failed to restore pending transactions", "err", err)
				return
			}
			c.log.Debug("dropping pending transaction", "txID", txID, "err", err)
			c.metrics.transactionsRejected.Inc()
		}
	}
	c.metrics.pendingTransactions.Set(float64(len(c.pending)))
}

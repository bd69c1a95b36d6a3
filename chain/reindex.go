// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/ledger"
)

// deleteBatchSize bounds the bytes buffered before a delete batch is
// written.
const deleteBatchSize = 1 << 20

// Reindex drops the ledger state and rebuilds it from the genesis and the
// block log. Blocks are trusted and replayed without signature checks.
func (c *Chain) Reindex() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}
	start := time.Now()
	c.clearPending()
	c.popped = nil
	c.deferredIrreversible = ids.Empty

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}
	if err := clearDatabase(c.stateDB); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	if err := c.open(); err != nil {
		return err
	}
	c.log.Info("reindexed state", "head", c.logHead, "duration", time.Since(start))
	return nil
}

// clearDatabase deletes every key of [db].
func clearDatabase(db database.Database) error {
	it := db.NewIterator()
	defer it.Release()

	batch := db.NewBatch()
	for it.Next() {
		if err := batch.Delete(it.Key()); err != nil {
			return err
		}
		if batch.Size() >= deleteBatchSize {
			if err := batch.Write(); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	return batch.Write()
}

// replay applies the block log from [from] to its head on top of the state.
// Replayed blocks are irreversible, so the state is committed up to the log
// head when done.
func (c *Chain) replay(from uint32) error {
	if from > c.logHead {
		return nil
	}
	c.log.Info("replaying blocks", "from", from, "to", c.logHead)
	for num := from; num <= c.logHead; num++ {
		blk, err := c.blocks.ReadByNumber(num)
		if err != nil {
			return fmt.Errorf("failed to read block %d: %w", num, err)
		}
		if err := c.pushBlock(blk, SkipTrustedReplay); err != nil {
			return fmt.Errorf("failed to replay block %d: %w", num, err)
		}
	}

	g, err := ledger.New(c.store.DB()).GlobalProperties()
	if err != nil {
		return err
	}
	if g.HeadBlockNumber != c.logHead {
		return invariant("replay", fmt.Errorf("head %d after replaying to %d", g.HeadBlockNumber, c.logHead))
	}
	if c.store.BaseRevision() < uint64(c.logHead) {
		if err := c.store.Commit(uint64(c.logHead)); err != nil {
			return invariant("commit replayed state", err)
		}
		c.forks.Reset(g.HeadBlockID, g.HeadBlockNumber)
	}
	return nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain applies blocks and transactions to the ledger state, tracks
// irreversibility and fork choice, and keeps the node's pending transactions.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/witnessvm/blocklog"
	"github.com/ava-labs/witnessvm/emission"
	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/forkdb"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/mana"
	"github.com/ava-labs/witnessvm/protocol"
	"github.com/ava-labs/witnessvm/state"
)

const Name = "witnessvm"

var (
	// These are prefixes for db keys.
	// The ledger state and the block log live under separate prefixes.
	statePrefix    = []byte("state")
	blockLogPrefix = []byte("blocklog")
)

// Chain is the state transition core. Block application, transaction
// submission and checkpoint handling take the write lock; queries take the
// read lock.
type Chain struct {
	lock sync.RWMutex

	config  Config
	genesis *protocol.Genesis
	log     log.Logger
	clock   *mockable.Clock
	metrics *metrics

	db      database.Database
	stateDB database.Database
	store   *state.Store
	blocks  blocklog.Log
	forks   *forkdb.ForkDB
	bus     *events.Bus

	registry *evaluators.Registry
	meter    mana.Meter
	emission emission.Engine

	hardforkVote uint32

	// logHead is the number of the last block in the block log
	logHead uint32

	// pendingSession holds every pending transaction on top of the head
	pendingSession *state.Session
	pending        []*protocol.SignedTransaction
	// popped holds transactions of undone blocks, to be retried before the
	// pending ones
	popped []*protocol.SignedTransaction

	// deferredIrreversible is a fast confirmed block on another branch
	deferredIrreversible ids.ID

	closed bool
}

// New opens the chain stored in [db]. An empty database is initialized from
// [genesis]. Blocks in the block log above the state are replayed.
func New(config Config, db database.Database, genesis *protocol.Genesis, opts ...Option) (*Chain, error) {
	if err := genesis.Validate(); err != nil {
		return nil, err
	}
	o := options{
		logger:       log.New("module", "chain"),
		clock:        &mockable.Clock{},
		registerer:   prometheus.NewRegistry(),
		hardforkVote: protocol.NumHardforks - 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		registry, err := evaluators.NewDefault()
		if err != nil {
			return nil, err
		}
		o.registry = registry
	}
	if o.meter == nil {
		o.meter = mana.NewDefault(mana.DefaultCosts)
	}
	if o.emission == nil {
		o.emission = emission.NewInflation()
	}
	if err := o.registry.Verify(); err != nil {
		return nil, err
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	c := &Chain{
		config:   config,
		genesis:  genesis,
		log:      o.logger,
		clock:    o.clock,
		metrics:  m,
		db:       db,
		stateDB:  prefixdb.New(statePrefix, db),
		bus:      events.NewBus(o.logger),
		registry: o.registry,
		meter:    o.meter,
		emission: o.emission,

		hardforkVote: o.hardforkVote,
	}
	if c.blocks, err = blocklog.New(prefixdb.New(blockLogPrefix, db)); err != nil {
		return nil, fmt.Errorf("failed to open block log: %w", err)
	}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

// open loads the state, initializing it from the genesis if needed, and
// replays the block log on top of it.
func (c *Chain) open() error {
	store, err := state.New(c.stateDB)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	c.store = store

	l := ledger.New(store.DB())
	initialized, err := l.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		c.log.Info("initializing state from genesis", "chainID", c.genesis.ChainID)
		if err := c.initGenesis(); err != nil {
			return fmt.Errorf("failed to initialize genesis: %w", err)
		}
	}

	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	if uint64(g.HeadBlockNumber) != store.Revision() {
		return invariant("open", fmt.Errorf("state head %d does not match revision %d", g.HeadBlockNumber, store.Revision()))
	}
	c.forks = forkdb.New(g.HeadBlockID, g.HeadBlockNumber)

	head, err := c.blocks.Head()
	switch {
	case errors.Is(err, blocklog.ErrEmpty):
		c.logHead = 0
	case err != nil:
		return err
	default:
		c.logHead = head.Num()
	}
	if c.logHead < g.HeadBlockNumber {
		return invariant("open", fmt.Errorf("block log head %d is behind state head %d", c.logHead, g.HeadBlockNumber))
	}
	if err := c.replay(g.HeadBlockNumber + 1); err != nil {
		return err
	}
	c.updateHeadMetrics()
	return nil
}

// Bus is where block, transaction and operation notifications are published.
func (c *Chain) Bus() *events.Bus { return c.bus }

func (c *Chain) Genesis() *protocol.Genesis { return c.genesis }

// view is the ledger as seen by queries, including pending transactions.
func (c *Chain) view() *ledger.Ledger { return ledger.New(c.store.DB()) }

func (c *Chain) headProperties() (*ledger.GlobalProperties, error) {
	return c.view().GlobalProperties()
}

// Head returns the number and id of the head block.
func (c *Chain) Head() (uint32, ids.ID, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	g, err := c.headProperties()
	if err != nil {
		return 0, ids.Empty, err
	}
	return g.HeadBlockNumber, g.HeadBlockID, nil
}

// HeadTime is the timestamp of the head block.
func (c *Chain) HeadTime() (uint32, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	g, err := c.headProperties()
	if err != nil {
		return 0, err
	}
	return g.Time, nil
}

// LastIrreversible is the number of the last irreversible block. State up to
// it has been written to the database.
func (c *Chain) LastIrreversible() uint32 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return uint32(c.store.BaseRevision())
}

// Revision is the revision of the state store. It always equals the head
// block number.
func (c *Chain) Revision() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.store.Revision()
}

// GetBlock returns a reversible or irreversible block.
func (c *Chain) GetBlock(blkID ids.ID) (*protocol.SignedBlock, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if item, ok := c.forks.Fetch(blkID); ok {
		return item.Block, nil
	}
	blk, err := c.blocks.ReadByID(blkID)
	if errors.Is(err, blocklog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, blkID)
	}
	return blk, err
}

// GetBlockByNumber returns the block numbered [num] on the applied branch.
func (c *Chain) GetBlockByNumber(num uint32) (*protocol.SignedBlock, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.blockByNumber(num)
}

func (c *Chain) blockByNumber(num uint32) (*protocol.SignedBlock, error) {
	g, err := c.headProperties()
	if err != nil {
		return nil, err
	}
	if num == 0 || num > g.HeadBlockNumber {
		return nil, fmt.Errorf("%w: number %d", ErrUnknownBlock, num)
	}
	if num <= c.logHead {
		blk, err := c.blocks.ReadByNumber(num)
		if errors.Is(err, blocklog.ErrNotFound) {
			return nil, fmt.Errorf("%w: number %d", ErrUnknownBlock, num)
		}
		return blk, err
	}
	item, err := c.forks.FetchOnBranch(num, g.HeadBlockID)
	if err != nil {
		return nil, fmt.Errorf("%w: number %d: %v", ErrUnknownBlock, num, err)
	}
	return item.Block, nil
}

func (c *Chain) GetAccount(name string) (*ledger.Account, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.view().Account(name)
}

func (c *Chain) GetWitness(owner string) (*ledger.Witness, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.view().Witness(owner)
}

func (c *Chain) GlobalProperties() (*ledger.GlobalProperties, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.headProperties()
}

func (c *Chain) HardforkProperty() (*ledger.HardforkProperty, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.view().HardforkProperty()
}

func (c *Chain) WitnessSchedule() (*ledger.WitnessSchedule, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.view().WitnessSchedule()
}

// PendingTransactions returns the pending transactions in submission order.
func (c *Chain) PendingTransactions() []*protocol.SignedTransaction {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return append([]*protocol.SignedTransaction(nil), c.pending...)
}

// IsKnownTransaction reports whether [txID] is applied on the head branch or
// pending.
func (c *Chain) IsKnownTransaction(txID ids.ID) (bool, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.view().IsKnownTransaction(txID)
}

// Close discards pending and reversible state and closes the block log. The
// database itself is left open.
func (c *Chain) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.clearPending()

	errs := wrappers.Errs{}
	errs.Add(
		c.store.Close(),
		c.blocks.Close(),
	)
	return errs.Err
}

func (c *Chain) updateHeadMetrics() {
	if g, err := ledger.New(c.store.DB()).GlobalProperties(); err == nil {
		c.metrics.headBlock.Set(float64(g.HeadBlockNumber))
	}
	c.metrics.irreversibleBlock.Set(float64(c.store.BaseRevision()))
	c.metrics.pendingTransactions.Set(float64(len(c.pending)))
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/emission"
	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/protocol"
)

const (
	testGenesisTime   uint32 = 1_500_000_000
	testInitialSupply int64  = 1_000_000
)

var (
	testChainID   = ids.ID{'w', 'i', 't', 'n', 'e', 's', 's'}
	testWitnesses = []string{"alpha", "bravo", "charlie"}
)

func testKey(name string) *btcec.PrivateKey { return protocol.PrivateKeyFromSeed(name) }

// testGenesis creates [witnesses] and the users alice and bob. Every account
// vests so it can pay mana once mana is charged.
func testGenesis(hardfork uint32, witnesses ...string) *protocol.Genesis {
	gen := &protocol.Genesis{
		Time:             testGenesisTime,
		ChainID:          testChainID,
		InitialSupply:    testInitialSupply,
		TreasuryAccount:  protocol.TreasuryAccountName,
		MaximumBlockSize: protocol.DefaultBlockSize,
		InitialHardfork:  hardfork,
		Hardforks:        protocol.DefaultHardforks(testGenesisTime),
	}
	for _, name := range witnesses {
		key := protocol.PublicKeyOf(testKey(name))
		gen.Accounts = append(gen.Accounts, protocol.GenesisAccount{Name: name, Key: key, Vesting: 1000})
		gen.Witnesses = append(gen.Witnesses, protocol.GenesisWitness{Name: name, SigningKey: key})
	}
	for _, name := range []string{"alice", "bob"} {
		gen.Accounts = append(gen.Accounts, protocol.GenesisAccount{
			Name:    name,
			Key:     protocol.PublicKeyOf(testKey(name)),
			Balance: 1000,
			Vesting: 1000,
		})
	}
	return gen
}

func newTestChain(t *testing.T, gen *protocol.Genesis, opts ...Option) *Chain {
	t.Helper()
	c, err := New(DefaultConfig(), memdb.New(), gen, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// nextBlock builds and signs, without applying, the block of the witness
// scheduled [missed] slots after the next one.
func nextBlock(t *testing.T, c *Chain, missed uint32, txs ...protocol.SignedTransaction) *protocol.SignedBlock {
	t.Helper()
	require := require.New(t)

	g, err := c.GlobalProperties()
	require.NoError(err)
	s, err := c.WitnessSchedule()
	require.NoError(err)
	slot := missed + 1
	name := scheduledWitness(g, s, slot)

	blk := &protocol.SignedBlock{}
	blk.Previous = g.HeadBlockID
	blk.Timestamp = slotTime(g, slot)
	blk.Witness = name
	blk.Version = protocol.ProtocolVersion
	blk.Transactions = txs
	blk.TransactionMerkleRoot, err = blk.MerkleRoot()
	require.NoError(err)
	require.NoError(blk.Sign(testKey(name)))
	return blk
}

// produce has the witness scheduled [missed] slots after the next one
// generate its block.
func produce(t *testing.T, c *Chain, missed uint32) *protocol.SignedBlock {
	t.Helper()
	require := require.New(t)

	g, err := c.GlobalProperties()
	require.NoError(err)
	s, err := c.WitnessSchedule()
	require.NoError(err)
	slot := missed + 1
	name := scheduledWitness(g, s, slot)
	blk, err := c.GenerateBlock(slotTime(g, slot), name, testKey(name), SkipNothing)
	require.NoError(err)
	return blk
}

func signedTx(t *testing.T, c *Chain, signer string, expiration uint32, ops ...protocol.Operation) *protocol.SignedTransaction {
	t.Helper()
	require := require.New(t)

	g, err := c.GlobalProperties()
	require.NoError(err)
	tx := &protocol.SignedTransaction{Transaction: protocol.Transaction{
		Expiration: expiration,
		Operations: ops,
	}}
	tx.SetReferenceBlock(g.HeadBlockID)
	require.NoError(tx.Sign(testKey(signer), testChainID))
	return tx
}

func transfer(t *testing.T, c *Chain, from, to string, amount int64) *protocol.SignedTransaction {
	t.Helper()
	headTime, err := c.HeadTime()
	require.NoError(t, err)
	return signedTx(t, c, from, headTime+60, &protocol.Transfer{
		From:   from,
		To:     to,
		Amount: protocol.Tokens(amount),
	})
}

func balance(t *testing.T, c *Chain, name string) int64 {
	t.Helper()
	a, err := c.GetAccount(name)
	require.NoError(t, err)
	return a.Balance.Amount
}

func headID(t *testing.T, c *Chain) ids.ID {
	t.Helper()
	_, id, err := c.Head()
	require.NoError(t, err)
	return id
}

func TestGenesis(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkFastConfirm, testWitnesses...))

	num, id, err := c.Head()
	require.NoError(err)
	require.Zero(num)
	require.Equal(ids.Empty, id)
	require.Zero(c.Revision())
	require.Zero(c.LastIrreversible())

	g, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(testGenesisTime, g.Time)
	require.Equal(testInitialSupply, g.CurrentSupply.Amount)

	hp, err := c.HardforkProperty()
	require.NoError(err)
	require.Equal(protocol.HardforkFastConfirm, hp.LastHardfork)
	require.Equal(protocol.HardforkVersion(protocol.HardforkFastConfirm), hp.CurrentHardforkVersion)
	require.Len(hp.ProcessedHardforks, int(protocol.HardforkFastConfirm)+1)

	s, err := c.WitnessSchedule()
	require.NoError(err)
	require.Equal(testWitnesses, s.CurrentShuffledWitnesses)

	// unallocated supply belongs to the treasury
	require.Equal(testInitialSupply-5*1000-2*1000, balance(t, c, protocol.TreasuryAccountName))
}

func TestPushTransaction(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)

	tx := transfer(t, c, "alice", "bob", 10)
	require.NoError(c.PushTransaction(tx))
	require.Len(c.PendingTransactions(), 1)
	// queries see the pending state
	require.Equal(int64(990), balance(t, c, "alice"))
	require.Equal(int64(1010), balance(t, c, "bob"))

	require.ErrorIs(c.PushTransaction(tx), ErrDuplicateTransaction)
	require.Len(c.PendingTransactions(), 1)

	blk := produce(t, c, 0)
	require.Len(blk.Transactions, 1)
	require.Empty(c.PendingTransactions())
	require.Equal(int64(990), balance(t, c, "alice"))
	require.Equal(int64(1010), balance(t, c, "bob"))

	txID, err := tx.ID()
	require.NoError(err)
	known, err := c.IsKnownTransaction(txID)
	require.NoError(err)
	require.True(known)
	require.ErrorIs(c.PushTransaction(tx), ErrDuplicateTransaction)
}

func TestPushTransactionRejected(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	headTime, err := c.HeadTime()
	require.NoError(err)

	// signed by the recipient
	tx := signedTx(t, c, "bob", headTime+60, &protocol.Transfer{From: "alice", To: "bob", Amount: protocol.Tokens(1)})
	require.ErrorIs(c.PushTransaction(tx), ErrMissingAuthority)

	tx = signedTx(t, c, "alice", headTime+protocol.MaxTimeUntilExpiration+1, &protocol.Transfer{From: "alice", To: "bob", Amount: protocol.Tokens(1)})
	require.ErrorIs(c.PushTransaction(tx), ErrExpirationTooFar)

	tx = transfer(t, c, "alice", "bob", 1)
	tx.RefBlockPrefix++
	require.NoError(tx.Sign(testKey("alice"), testChainID))
	tx.Signatures = tx.Signatures[1:]
	require.ErrorIs(c.PushTransaction(tx), ErrTaPoS)

	// a rejected transaction leaves nothing behind
	require.Empty(c.PendingTransactions())
	require.Equal(int64(1000), balance(t, c, "alice"))
}

func TestTransactionExpiringAtHeadTime(t *testing.T) {
	tests := []struct {
		name        string
		hardfork    uint32
		expectedErr error
	}{
		{
			name:     "accepted before strict expiration",
			hardfork: protocol.HardforkStrictExpiration - 1,
		},
		{
			name:        "rejected after strict expiration",
			hardfork:    protocol.HardforkStrictExpiration,
			expectedErr: ErrTransactionExpired,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			c := newTestChain(t, testGenesis(test.hardfork, testWitnesses...))
			headTime, err := c.HeadTime()
			require.NoError(err)
			tx := signedTx(t, c, "alice", headTime, &protocol.Transfer{From: "alice", To: "bob", Amount: protocol.Tokens(1)})
			require.ErrorIs(c.PushTransaction(tx), test.expectedErr)
		})
	}
}

func TestCustomOperationLimit(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkFastConfirm, testWitnesses...))
	headTime, err := c.HeadTime()
	require.NoError(err)

	custom := func(i byte) *protocol.SignedTransaction {
		return signedTx(t, c, "alice", headTime+60, &protocol.Custom{
			RequiredAuths: []string{"alice"},
			ID:            1,
			Data:          []byte{i},
		})
	}
	for i := byte(0); i < byte(protocol.CustomOpBlockLimit); i++ {
		require.NoError(c.PushTransaction(custom(i)))
	}
	over := custom(byte(protocol.CustomOpBlockLimit))
	require.ErrorIs(c.PushTransaction(over), evaluators.ErrCustomOperationLimit)

	blk := produce(t, c, 0)
	require.Len(blk.Transactions, int(protocol.CustomOpBlockLimit))

	// the next block has a fresh allowance
	require.NoError(c.PushTransaction(over))
}

func TestMissedSlots(t *testing.T) {
	require := require.New(t)

	witnesses := []string{"alpha", "bravo", "charlie", "delta"}
	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, witnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	totalMissed := func() uint32 {
		var total uint32
		for _, name := range witnesses {
			w, err := c.GetWitness(name)
			require.NoError(err)
			total += w.TotalMissed
		}
		return total
	}

	produce(t, c, 0)
	require.Zero(totalMissed())

	blk := produce(t, c, 3)
	require.Equal(uint32(2), blk.Num())
	require.Equal(uint32(3), totalMissed())

	g, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(uint32(2), g.HeadBlockNumber)
	require.Equal(uint64(5), g.CurrentAslot)
	require.Equal(uint8(125), g.ParticipationCount)

	w, err := c.GetWitness(blk.Witness)
	require.NoError(err)
	require.Zero(w.TotalMissed)
	require.Equal(uint32(2), w.LastConfirmedBlockNum)
}

func TestBlockValidation(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	failed := 0
	c.Bus().Subscribe(events.FailApplyBlock, 0, func(*events.Event) error {
		failed++
		return nil
	})

	blk := nextBlock(t, c, 0)
	blk.Timestamp++
	require.NoError(blk.Sign(testKey(blk.Witness)))
	require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrBlockTime)

	blk = nextBlock(t, c, 0)
	other := nextBlock(t, c, 1)
	blk.Witness = other.Witness
	require.NoError(blk.Sign(testKey(other.Witness)))
	require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrWrongWitness)

	blk = nextBlock(t, c, 0)
	require.NoError(blk.Sign(testKey("alice")))
	require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrBadWitnessSignature)

	blk = nextBlock(t, c, 0)
	blk.Previous = ids.GenerateTestID()
	require.NoError(blk.Sign(testKey(blk.Witness)))
	require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrUnlinkableBlock)

	require.Equal(3, failed)
	num, _, err := c.Head()
	require.NoError(err)
	require.Zero(num)

	// the untouched block still applies
	blk = nextBlock(t, c, 0)
	require.NoError(c.PushBlock(blk, SkipNothing))
	blkID, err := blk.ID()
	require.NoError(err)
	require.Equal(blkID, headID(t, c))

	// pushing it again is a no-op
	require.NoError(c.PushBlock(blk, SkipNothing))
	require.Equal(uint64(1), c.Revision())
}

func TestMerkleException(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)

	blk := nextBlock(t, c, 0)
	blk.TransactionMerkleRoot = ids.ID{1}
	require.NoError(blk.Sign(testKey(blk.Witness)))
	require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrMerkleMismatch)

	merkleExceptions[blk.Num()] = blk.TransactionMerkleRoot
	t.Cleanup(func() { delete(merkleExceptions, blk.Num()) })

	require.NoError(c.PushBlock(blk, SkipNothing))
	blkID, err := blk.ID()
	require.NoError(err)
	require.Equal(blkID, headID(t, c))
}

func TestPopBlock(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	produce(t, c, 0)
	before, err := c.GlobalProperties()
	require.NoError(err)
	alice, err := c.GetAccount("alice")
	require.NoError(err)

	tx := transfer(t, c, "alice", "bob", 10)
	require.NoError(c.PushTransaction(tx))
	blk := produce(t, c, 0)
	require.Len(blk.Transactions, 1)
	require.Zero(c.LastIrreversible())

	popped, err := c.PopBlock()
	require.NoError(err)
	require.Equal(blk, popped)
	require.Equal(uint64(1), c.Revision())

	// the popped transaction is pending again
	pending := c.PendingTransactions()
	require.Len(pending, 1)
	require.Equal(tx, pending[0])

	c.ClearPending()
	after, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(before, after)
	restored, err := c.GetAccount("alice")
	require.NoError(err)
	require.Equal(alice, restored)

	txID, err := tx.ID()
	require.NoError(err)
	known, err := c.IsKnownTransaction(txID)
	require.NoError(err)
	require.False(known)

	_, err = c.PopBlock()
	require.NoError(err)
	require.Zero(c.Revision())
	_, err = c.PopBlock()
	require.ErrorIs(err, ErrPopIrreversible)
}

func TestIrreversibility(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	var irreversible []uint32
	c.Bus().Subscribe(events.IrreversibleBlock, 0, func(ev *events.Event) error {
		irreversible = append(irreversible, ev.BlockNum)
		return nil
	})

	var (
		first *protocol.SignedBlock
		lib   uint32
	)
	for i := 0; i < 9; i++ {
		blk := produce(t, c, 0)
		if first == nil {
			first = blk
		}
		num, _, err := c.Head()
		require.NoError(err)
		require.Equal(uint64(num), c.Revision())

		next := c.LastIrreversible()
		require.GreaterOrEqual(next, lib)
		require.LessOrEqual(next, num)
		lib = next
	}
	require.Positive(lib)
	require.Len(irreversible, int(lib))
	for i, num := range irreversible {
		require.Equal(uint32(i+1), num)
	}

	// irreversible blocks are served from the block log
	blk, err := c.GetBlockByNumber(1)
	require.NoError(err)
	expectedID, err := first.ID()
	require.NoError(err)
	blkID, err := blk.ID()
	require.NoError(err)
	require.Equal(expectedID, blkID)

	for c.Revision() > uint64(lib) {
		_, err := c.PopBlock()
		require.NoError(err)
	}
	_, err = c.PopBlock()
	require.ErrorIs(err, ErrPopIrreversible)
}

func TestFastConfirm(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkFastConfirm, testWitnesses...))
	var irreversible []uint32
	c.Bus().Subscribe(events.IrreversibleBlock, 0, func(ev *events.Event) error {
		irreversible = append(irreversible, ev.BlockNum)
		return nil
	})

	blk := produce(t, c, 0)
	blkID, err := blk.ID()
	require.NoError(err)
	require.Zero(c.LastIrreversible())

	headTime, err := c.HeadTime()
	require.NoError(err)
	approve := func(witness, signer string) *protocol.SignedTransaction {
		return signedTx(t, c, signer, headTime+60, &protocol.WitnessBlockApprove{
			Witness: witness,
			BlockID: blkID,
		})
	}

	require.ErrorIs(c.PushFastConfirm(approve("alice", "alice")), ErrNotScheduled)

	var others []string
	for _, name := range testWitnesses {
		if name != blk.Witness {
			others = append(others, name)
		}
	}
	require.ErrorIs(c.PushFastConfirm(approve(others[0], "alice")), ErrInvalidFastConfirm)

	require.NoError(c.PushFastConfirm(approve(others[0], others[0])))
	require.Zero(c.LastIrreversible())

	require.NoError(c.PushFastConfirm(approve(others[1], others[1])))
	require.Equal(uint32(1), c.LastIrreversible())
	require.Equal([]uint32{1}, irreversible)

	g, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(uint32(1), g.LastIrreversibleBlockNum)

	// irreversible blocks leave the fork database
	require.ErrorIs(c.PushFastConfirm(approve(others[1], others[1])), ErrUnknownBlock)
	require.Equal([]uint32{1}, irreversible)
}

func TestFastConfirmInactive(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	blk := produce(t, c, 0)
	blkID, err := blk.ID()
	require.NoError(err)
	headTime, err := c.HeadTime()
	require.NoError(err)

	tx := signedTx(t, c, blk.Witness, headTime+60, &protocol.WitnessBlockApprove{
		Witness: blk.Witness,
		BlockID: blkID,
	})
	require.ErrorIs(c.PushFastConfirm(tx), ErrInvalidFastConfirm)
	// approvals are never regular transactions
	require.ErrorIs(c.PushTransaction(tx), ErrInvalidTransaction)
}

func TestHardforksApplyInOrder(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkGenesis, testWitnesses...))
	var applied []uint32
	c.Bus().Subscribe(events.HardforkApplied, 0, func(ev *events.Event) error {
		applied = append(applied, ev.Hardfork)
		return nil
	})

	// each round of witnesses votes in the next hardfork
	for i := 0; i < 3*len(testWitnesses); i++ {
		produce(t, c, 0)
	}
	require.Equal([]uint32{1, 2, 3}, applied)

	hp, err := c.HardforkProperty()
	require.NoError(err)
	require.Equal(uint32(3), hp.LastHardfork)
	require.Equal(protocol.HardforkVersion(3), hp.CurrentHardforkVersion)
	require.Len(hp.ProcessedHardforks, 4)
}

func TestHardforkVoteCap(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGenesis, testWitnesses...),
		WithHardforkVote(2),
	)
	for i := 0; i < 4*len(testWitnesses); i++ {
		produce(t, c, 0)
	}
	hp, err := c.HardforkProperty()
	require.NoError(err)
	require.Equal(uint32(2), hp.LastHardfork)
}

func TestDeterministicApplication(t *testing.T) {
	require := require.New(t)

	gen := testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...)
	producer := newTestChain(t, gen, WithHardforkVote(protocol.HardforkGovernanceExpiry))
	follower := newTestChain(t, gen)

	require.NoError(producer.PushTransaction(transfer(t, producer, "alice", "bob", 25)))
	blocks := []*protocol.SignedBlock{produce(t, producer, 0)}
	require.NoError(producer.PushTransaction(transfer(t, producer, "bob", "alice", 5)))
	blocks = append(blocks, produce(t, producer, 1), produce(t, producer, 0), produce(t, producer, 0))

	for _, blk := range blocks {
		require.NoError(follower.PushBlock(blk, SkipNothing))
	}

	require.Equal(headID(t, producer), headID(t, follower))
	require.Equal(producer.LastIrreversible(), follower.LastIrreversible())
	for _, name := range []string{"alice", "bob", protocol.TreasuryAccountName} {
		expected, err := producer.GetAccount(name)
		require.NoError(err)
		actual, err := follower.GetAccount(name)
		require.NoError(err)
		require.Equal(expected, actual)
	}
	expectedG, err := producer.GlobalProperties()
	require.NoError(err)
	actualG, err := follower.GlobalProperties()
	require.NoError(err)
	require.Equal(expectedG, actualG)

	expectedS, err := producer.WitnessSchedule()
	require.NoError(err)
	actualS, err := follower.WitnessSchedule()
	require.NoError(err)
	require.Equal(expectedS, actualS)
}

func TestSwitchFork(t *testing.T) {
	require := require.New(t)

	gen := testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...)
	a := newTestChain(t, gen, WithHardforkVote(protocol.HardforkGovernanceExpiry))
	b := newTestChain(t, gen, WithHardforkVote(protocol.HardforkGovernanceExpiry))

	require.NoError(b.PushBlock(produce(t, a, 0), SkipNothing))

	// a builds on slot one, b skips it and builds a longer branch
	require.NoError(a.PushTransaction(transfer(t, a, "alice", "bob", 10)))
	short := produce(t, a, 0)
	require.Len(short.Transactions, 1)
	long1 := produce(t, b, 1)
	long2 := produce(t, b, 0)

	var switches []*events.Event
	a.Bus().Subscribe(events.SwitchFork, 0, func(ev *events.Event) error {
		switches = append(switches, ev)
		return nil
	})

	shortID, err := short.ID()
	require.NoError(err)
	require.NoError(a.PushBlock(long1, SkipNothing))
	require.Equal(shortID, headID(t, a))
	require.Empty(switches)

	require.NoError(a.PushBlock(long2, SkipNothing))
	long2ID, err := long2.ID()
	require.NoError(err)
	require.Equal(long2ID, headID(t, a))
	require.Len(switches, 1)
	require.Equal(shortID, switches[0].BlockID)
	require.Equal(long2ID, switches[0].NewHead)

	// the abandoned transfer is pending again
	require.Len(a.PendingTransactions(), 1)
	a.ClearPending()

	expected, err := b.GlobalProperties()
	require.NoError(err)
	actual, err := a.GlobalProperties()
	require.NoError(err)
	require.Equal(expected, actual)
	require.Equal(int64(1000), balance(t, a, "alice"))
}

func TestMeterAndEmission(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	meter := NewMockMeter(ctrl)
	engine := NewMockEngine(ctrl)
	// the mana reset migration runs while initializing the genesis
	meter.EXPECT().Reset(gomock.Any()).Return(nil).Times(1)
	// the transfer is metered when pending, when selected and when applied
	meter.EXPECT().OnOperation(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	meter.EXPECT().OnTransaction(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)
	meter.EXPECT().OnBlock(gomock.Any()).Return(nil).Times(2)
	engine.EXPECT().Process(gomock.Any()).Return(emission.Result{Minted: protocol.Tokens(10)}, nil).Times(2)

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithMeter(meter),
		WithEmission(engine),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)

	require.NoError(c.PushTransaction(transfer(t, c, "alice", "bob", 1)))
	produce(t, c, 0)
	produce(t, c, 0)

	g, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(testInitialSupply+20, g.CurrentSupply.Amount)
}

func TestReopen(t *testing.T) {
	require := require.New(t)

	// a single witness makes every block irreversible right away
	gen := testGenesis(protocol.HardforkGovernanceExpiry, "alpha")
	db := memdb.New()
	c, err := New(DefaultConfig(), db, gen)
	require.NoError(err)

	require.NoError(c.PushTransaction(transfer(t, c, "alice", "bob", 10)))
	for i := 0; i < 3; i++ {
		produce(t, c, 0)
	}
	require.Equal(uint32(3), c.LastIrreversible())
	expected, err := c.GlobalProperties()
	require.NoError(err)
	require.NoError(c.Close())
	_, err = c.PopBlock()
	require.ErrorIs(err, ErrClosed)

	c, err = New(DefaultConfig(), db, gen)
	require.NoError(err)
	defer func() { require.NoError(c.Close()) }()

	actual, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(expected, actual)
	require.Equal(int64(990), balance(t, c, "alice"))
}

func TestReindex(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkGovernanceExpiry, "alpha"))
	require.NoError(c.PushTransaction(transfer(t, c, "alice", "bob", 10)))
	for i := 0; i < 4; i++ {
		produce(t, c, 0)
	}
	require.NoError(c.PushTransaction(transfer(t, c, "bob", "alice", 3)))
	produce(t, c, 1)

	expected, err := c.GlobalProperties()
	require.NoError(err)
	expectedBob, err := c.GetAccount("bob")
	require.NoError(err)

	require.NoError(c.Reindex())

	actual, err := c.GlobalProperties()
	require.NoError(err)
	require.Equal(expected, actual)
	actualBob, err := c.GetAccount("bob")
	require.NoError(err)
	require.Equal(expectedBob, actualBob)
	require.Equal(uint64(5), c.Revision())
}

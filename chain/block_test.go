// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/emission"
	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/protocol"
)

func TestSizeLimits(t *testing.T) {
	const maxBlockSize uint32 = 1024

	newChain := func(t *testing.T) *Chain {
		gen := testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...)
		gen.MaximumBlockSize = maxBlockSize
		return newTestChain(t, gen, WithHardforkVote(protocol.HardforkGovernanceExpiry))
	}
	memoTransfer := func(t *testing.T, c *Chain, amount int64, memo int) *protocol.SignedTransaction {
		headTime, err := c.HeadTime()
		require.NoError(t, err)
		return signedTx(t, c, "alice", headTime+60, &protocol.Transfer{
			From:   "alice",
			To:     "bob",
			Amount: protocol.Tokens(amount),
			Memo:   strings.Repeat("m", memo),
		})
	}

	t.Run("transaction", func(t *testing.T) {
		tests := []struct {
			name        string
			memo        int
			expectedErr error
		}{
			{
				name: "under a quarter of the block",
				memo: 16,
			},
			{
				name:        "over a quarter of the block",
				memo:        int(maxBlockSize * protocol.MaxTransactionSizePercent / 100),
				expectedErr: ErrTransactionTooLarge,
			},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				c := newChain(t)
				require.ErrorIs(t, c.PushTransaction(memoTransfer(t, c, 1, test.memo)), test.expectedErr)
			})
		}
	})

	t.Run("block", func(t *testing.T) {
		require := require.New(t)

		c := newChain(t)
		var txs []protocol.SignedTransaction
		for i := int64(1); i <= 6; i++ {
			txs = append(txs, *memoTransfer(t, c, i, 200))
		}
		blk := nextBlock(t, c, 0, txs...)
		raw, err := blk.Bytes()
		require.NoError(err)
		require.Greater(len(raw), int(maxBlockSize))

		require.ErrorIs(c.PushBlock(blk, SkipNothing), ErrBlockTooLarge)
		num, _, err := c.Head()
		require.NoError(err)
		require.Zero(num)

		// the producer keeps within the limit
		for i := range txs {
			require.NoError(c.PushTransaction(memoTransfer(t, c, int64(i+1), 16)))
		}
		produced := produce(t, c, 0)
		raw, err = produced.Bytes()
		require.NoError(err)
		require.LessOrEqual(len(raw), int(maxBlockSize))
		require.NotEmpty(produced.Transactions)
	})
}

type appliedOperation struct {
	kind    events.Kind
	op      protocol.OpType
	virtual bool
	txIndex int
}

func TestVirtualOperationEvents(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	engine := NewMockEngine(ctrl)
	engine.EXPECT().Process(gomock.Any()).DoAndReturn(func(ctx *evaluators.Context) (emission.Result, error) {
		return emission.Result{}, ctx.Virtual(&protocol.ProducerReward{
			Producer:      ctx.Witness,
			VestingShares: protocol.Vests(1),
		})
	}).AnyTimes()

	c := newTestChain(t,
		testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
		WithEmission(engine),
		WithHardforkVote(protocol.HardforkGovernanceExpiry),
	)
	require.NoError(c.PushTransaction(transfer(t, c, "alice", "bob", 1)))

	var (
		recording bool
		applied   []appliedOperation
	)
	record := func(ev *events.Event) error {
		switch ev.Kind {
		case events.PreApplyBlock:
			recording = true
			return nil
		case events.PostApplyBlock:
			recording = false
			return nil
		}
		if !recording {
			return nil
		}
		entry := appliedOperation{kind: ev.Kind, txIndex: ev.TxIndex, virtual: ev.Virtual}
		if ev.Operation != nil {
			entry.op = ev.Operation.Type()
		}
		applied = append(applied, entry)
		return nil
	}
	for _, kind := range []events.Kind{
		events.PreApplyBlock,
		events.PostApplyBlock,
		events.PreApplyTransaction,
		events.PostApplyTransaction,
		events.PreApplyOperation,
		events.PostApplyOperation,
	} {
		c.Bus().Subscribe(kind, 0, record)
	}

	produce(t, c, 0)

	require.GreaterOrEqual(len(applied), 6)
	require.Equal([]appliedOperation{
		{kind: events.PreApplyTransaction, txIndex: 0},
		{kind: events.PreApplyOperation, op: protocol.TransferOp, txIndex: 0},
		{kind: events.PostApplyOperation, op: protocol.TransferOp, txIndex: 0},
		{kind: events.PostApplyTransaction, txIndex: 0},
	}, applied[:4])

	// virtual operations nest between their own pre and post notifications
	// and never interleave with another operation
	var open []appliedOperation
	reward := -1
	for i, entry := range applied {
		switch entry.kind {
		case events.PreApplyOperation:
			open = append(open, entry)
		case events.PostApplyOperation:
			require.NotEmpty(open)
			top := open[len(open)-1]
			require.Equal(top.op, entry.op)
			require.Equal(top.virtual, entry.virtual)
			open = open[:len(open)-1]
		}
		if entry.op == protocol.ProducerRewardOp && entry.kind == events.PreApplyOperation {
			reward = i
		}
	}
	require.Empty(open)
	require.Greater(reward, 3)
	require.True(applied[reward].virtual)
	require.Equal(-1, applied[reward].txIndex)
	require.Equal(appliedOperation{
		kind:    events.PostApplyOperation,
		op:      protocol.ProducerRewardOp,
		virtual: true,
		txIndex: -1,
	}, applied[reward+1])
}

func TestWitnessShutdown(t *testing.T) {
	tests := []struct {
		name             string
		hardfork         uint32
		lastConfirmed    uint32
		expectedShutdown bool
	}{
		{
			name:     "before the shutdown hardfork",
			hardfork: protocol.HardforkWitnessShutdown - 1,
		},
		{
			name:             "silent for over a day",
			hardfork:         protocol.HardforkWitnessShutdown,
			expectedShutdown: true,
		},
		{
			name:          "confirmed within a day",
			hardfork:      protocol.HardforkWitnessShutdown,
			lastConfirmed: 20,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			c := newTestChain(t, testGenesis(test.hardfork, testWitnesses...))
			var shutdowns []string
			c.Bus().Subscribe(events.PostApplyOperation, 0, func(ev *events.Event) error {
				if op, ok := ev.Operation.(*protocol.ShutdownWitness); ok {
					require.True(ev.Virtual)
					shutdowns = append(shutdowns, op.Owner)
				}
				return nil
			})

			a, _ := beginApply(t, c)
			l := a.ledger
			g, err := l.GlobalProperties()
			require.NoError(err)
			g.HeadBlockNumber = protocol.BlocksPerDay + 10
			require.NoError(l.PutGlobalProperties(g))
			s, err := l.WitnessSchedule()
			require.NoError(err)

			// the first slot's witness misses it
			missedName := scheduledWitness(g, s, 1)
			w, err := l.Witness(missedName)
			require.NoError(err)
			w.LastConfirmedBlockNum = test.lastConfirmed
			require.NoError(l.PutWitness(w))

			blk := &protocol.SignedBlock{}
			blk.Witness = scheduledWitness(g, s, 2)
			blk.Timestamp = slotTime(g, 2)
			a.blockNum = g.HeadBlockNumber + 1
			a.witness = blk.Witness
			a.block = blk

			missed, err := c.updateGlobalProperties(a, blk)
			require.NoError(err)
			require.Equal(uint32(1), missed)

			w, err = l.Witness(missedName)
			require.NoError(err)
			require.Equal(uint32(1), w.TotalMissed)
			require.Equal(!test.expectedShutdown, w.Active())
			if test.expectedShutdown {
				require.Equal([]string{missedName}, shutdowns)
			} else {
				require.Empty(shutdowns)
			}
		})
	}
}

func TestIrreversibleSupermajority(t *testing.T) {
	tests := []struct {
		name     string
		hardfork uint32
		options  []Option
	}{
		{
			name:     "last confirmed blocks",
			hardfork: protocol.HardforkGovernanceExpiry,
			options:  []Option{WithHardforkVote(protocol.HardforkGovernanceExpiry)},
		},
		{
			name:     "fast confirmations",
			hardfork: protocol.HardforkFastConfirm,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			witnesses := []string{"alpha", "bravo", "charlie", "delta"}
			c := newTestChain(t, testGenesis(test.hardfork, witnesses...), test.options...)

			// three of four is exactly the threshold, which is not enough
			producers := make(map[string]struct{})
			for i := 0; i < 3*len(witnesses) && len(producers) < len(witnesses); i++ {
				blk := produce(t, c, 0)
				producers[blk.Witness] = struct{}{}
				if len(producers) < len(witnesses) {
					require.Zero(c.LastIrreversible(), "irreversible with %d of %d producers", len(producers), len(witnesses))
				}
			}
			require.Len(producers, len(witnesses))
			require.Positive(c.LastIrreversible())
		})
	}
}

func TestIrreversibleRequired(t *testing.T) {
	tests := []struct {
		witnesses int
		expected  int
	}{
		{witnesses: 1, expected: 1},
		{witnesses: 3, expected: 3},
		{witnesses: 4, expected: 4},
		{witnesses: 5, expected: 4},
		{witnesses: 21, expected: 16},
	}
	for _, test := range tests {
		require.Equal(t, test.expected, irreversibleRequired(test.witnesses), "%d witnesses", test.witnesses)
	}
}

func TestFailedBlockKeepsNoApproval(t *testing.T) {
	require := require.New(t)

	c := newTestChain(t, testGenesis(protocol.HardforkFastConfirm, testWitnesses...))
	errRejected := errors.New("rejected")
	reject := false
	c.Bus().Subscribe(events.PostApplyBlock, 0, func(*events.Event) error {
		if reject {
			return errRejected
		}
		return nil
	})

	blk := nextBlock(t, c, 0)
	_, _, approved := c.forks.Approval(blk.Witness)
	require.False(approved)

	reject = true
	require.ErrorIs(c.PushBlock(blk, SkipNothing), errRejected)
	_, _, approved = c.forks.Approval(blk.Witness)
	require.False(approved)

	reject = false
	require.NoError(c.PushBlock(blk, SkipNothing))
	blkID, err := blk.ID()
	require.NoError(err)
	approvedID, num, approved := c.forks.Approval(blk.Witness)
	require.True(approved)
	require.Equal(blkID, approvedID)
	require.Equal(uint32(1), num)
}

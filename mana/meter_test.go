// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mana

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

func newContext(t *testing.T, vesting int64) *evaluators.Context {
	l := ledger.New(memdb.New())
	a := evaluators.NewAccount("alice", 0)
	a.VestingShares = protocol.Vests(vesting)
	require.NoError(t, l.PutAccount(a))
	return &evaluators.Context{
		Ledger:       l,
		Now:          100,
		LastHardfork: protocol.HardforkManaReset,
	}
}

func TestRegenerate(t *testing.T) {
	require := require.New(t)

	bar := ledger.ManaBar{CurrentMana: 0, LastUpdateTime: 0}
	half := protocol.ManaRegenerationSeconds / 2
	require.NoError(Regenerate(&bar, 1000, half))
	require.Equal(int64(500), bar.CurrentMana)
	require.Equal(half, bar.LastUpdateTime)

	require.NoError(Regenerate(&bar, 1000, 10*protocol.ManaRegenerationSeconds))
	require.Equal(int64(1000), bar.CurrentMana)

	// a shrinking bar is clamped
	require.NoError(Regenerate(&bar, 400, bar.LastUpdateTime))
	require.Equal(int64(400), bar.CurrentMana)
}

func TestChargeAfterReset(t *testing.T) {
	require := require.New(t)
	ctx := newContext(t, 250)
	m := NewDefault(DefaultCosts)

	require.NoError(m.Reset(ctx))
	a, err := ctx.Ledger.Account("alice")
	require.NoError(err)
	require.Equal(int64(250), a.Mana.CurrentMana)

	op := &protocol.Transfer{From: "alice", To: "bob", Amount: protocol.Tokens(1)}
	require.NoError(m.OnOperation(ctx, op))
	require.NoError(m.OnOperation(ctx, op))
	require.ErrorIs(m.OnOperation(ctx, op), ErrInsufficientMana)
	require.Equal(int64(200), m.BlockUsage())

	tx := &protocol.SignedTransaction{Transaction: protocol.Transaction{Operations: []protocol.Operation{op}}}
	require.NoError(m.OnTransaction(ctx, tx, 50))
	require.ErrorIs(m.OnTransaction(ctx, tx, 1), ErrInsufficientMana)

	require.NoError(m.OnBlock(ctx))
	require.Zero(m.BlockUsage())
}

func TestNotEnforcedBeforeHardfork(t *testing.T) {
	require := require.New(t)
	ctx := newContext(t, 0)
	ctx.LastHardfork = protocol.HardforkManaReset - 1
	m := NewDefault(DefaultCosts)

	op := &protocol.Transfer{From: "alice", To: "bob", Amount: protocol.Tokens(1)}
	require.NoError(m.OnOperation(ctx, op))
	require.Zero(m.BlockUsage())

	// virtual operations are never charged
	ctx.LastHardfork = protocol.HardforkManaReset
	require.NoError(m.OnOperation(ctx, &protocol.ProducerReward{Producer: "alice"}))
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emission

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// 500 basis points a year mints exactly 10000 per block from this supply
const testSupply int64 = 10000 * protocol.PercentBasisPoints * int64(protocol.BlocksPerYear) / protocol.DefaultInflationRateBasisPoints

func setup(t *testing.T, treasury string) (*evaluators.Context, *[]protocol.Operation) {
	require := require.New(t)

	l := ledger.New(memdb.New())
	require.NoError(l.PutGlobalProperties(&ledger.GlobalProperties{
		CurrentSupply:      protocol.Tokens(testSupply),
		TotalVestingFund:   protocol.Tokens(0),
		TotalVestingShares: protocol.Vests(0),
		TreasuryAccount:    treasury,
	}))
	for _, name := range []string{"alice", treasury} {
		if name != "" {
			require.NoError(l.PutAccount(evaluators.NewAccount(name, 0)))
		}
	}
	var vops []protocol.Operation
	return &evaluators.Context{
		Ledger:  l,
		Witness: "alice",
		Virtual: func(op protocol.Operation) error {
			vops = append(vops, op)
			return nil
		},
	}, &vops
}

func TestInflation(t *testing.T) {
	require := require.New(t)
	ctx, vops := setup(t, "treasury")

	res, err := NewInflation().Process(ctx)
	require.NoError(err)
	require.Equal(protocol.Tokens(10000), res.Minted)
	require.Equal(protocol.Tokens(1000), res.ToProducer)
	require.Equal(protocol.Tokens(1500), res.ToVestingFund)
	require.Equal(protocol.Tokens(7500), res.ToTreasury)

	alice, err := ctx.Ledger.Account("alice")
	require.NoError(err)
	require.Equal(1000*ledger.InitialVestsPerToken, alice.VestingShares.Amount)

	treasury, err := ctx.Ledger.Account("treasury")
	require.NoError(err)
	require.Equal(int64(7500), treasury.Balance.Amount)

	g, err := ctx.Ledger.GlobalProperties()
	require.NoError(err)
	require.Equal(int64(2500), g.TotalVestingFund.Amount)
	// the caller owns the supply counter
	require.Equal(testSupply, g.CurrentSupply.Amount)

	require.Len(*vops, 1)
	reward, ok := (*vops)[0].(*protocol.ProducerReward)
	require.True(ok)
	require.Equal("alice", reward.Producer)
	require.Equal(alice.VestingShares, reward.VestingShares)
}

func TestInflationWithoutTreasury(t *testing.T) {
	require := require.New(t)
	ctx, _ := setup(t, "")

	res, err := NewInflation().Process(ctx)
	require.NoError(err)
	require.Zero(res.ToTreasury.Amount)
	require.Equal(int64(9000), res.ToVestingFund.Amount)
	require.Equal(res.Minted.Amount, res.ToProducer.Amount+res.ToVestingFund.Amount)
}

func TestInflationUnknownProducer(t *testing.T) {
	ctx, _ := setup(t, "treasury")
	ctx.Witness = "mallory"

	_, err := NewInflation().Process(ctx)
	require.ErrorIs(t, err, errUnknownProducer)
}

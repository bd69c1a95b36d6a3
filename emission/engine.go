// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emission

import (
	"errors"
	"fmt"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var errUnknownProducer = errors.New("block producer has no account")

// Result is what one block minted and where it went.
type Result struct {
	Minted        protocol.Asset
	ToProducer    protocol.Asset
	ToVestingFund protocol.Asset
	ToTreasury    protocol.Asset
}

// Engine mints new tokens once per block. Implementations pay out the
// distribution and leave the supply counters to the caller.
type Engine interface {
	Process(ctx *evaluators.Context) (Result, error)
}

// Inflation mints a fixed annual rate of the current supply, spread evenly
// over the blocks of a year.
type Inflation struct {
	ProducerPercent    int64
	VestingFundPercent int64
}

func NewInflation() *Inflation {
	return &Inflation{
		ProducerPercent:    protocol.ProducerRewardPercent,
		VestingFundPercent: protocol.VestingFundPercent,
	}
}

func (e *Inflation) Process(ctx *evaluators.Context) (Result, error) {
	l := ctx.Ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return Result{}, err
	}
	rate := g.InflationRateBasisPoints
	if rate == 0 {
		rate = protocol.DefaultInflationRateBasisPoints
	}
	minted, err := protocol.MulDiv(g.CurrentSupply.Amount, rate, protocol.PercentBasisPoints*int64(protocol.BlocksPerYear))
	if err != nil {
		return Result{}, fmt.Errorf("failed to compute block inflation: %w", err)
	}
	res := Result{
		Minted:        protocol.Tokens(minted),
		ToProducer:    protocol.Tokens(minted * e.ProducerPercent / 100),
		ToVestingFund: protocol.Tokens(minted * e.VestingFundPercent / 100),
	}
	res.ToTreasury = protocol.Tokens(minted - res.ToProducer.Amount - res.ToVestingFund.Amount)
	if minted == 0 {
		return res, nil
	}

	treasury, err := e.treasury(l, g)
	if err != nil {
		return Result{}, err
	}
	if treasury == nil {
		res.ToVestingFund.Amount += res.ToTreasury.Amount
		res.ToTreasury.Amount = 0
	} else if err := ledger.AdjustBalance(treasury, res.ToTreasury); err != nil {
		return Result{}, err
	}

	var shares protocol.Asset
	if res.ToProducer.Amount > 0 {
		producer, err := l.Account(ctx.Witness)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q: %v", errUnknownProducer, ctx.Witness, err)
		}
		if producer.Name == g.TreasuryAccount && treasury != nil {
			producer = treasury
		}
		if shares, err = ledger.Vest(g, producer, res.ToProducer); err != nil {
			return Result{}, err
		}
		if err := l.AdjustWitnessVotes(producer.Name, shares.Amount); err != nil {
			return Result{}, err
		}
		if err := l.PutAccount(producer); err != nil {
			return Result{}, err
		}
	}
	if treasury != nil {
		if err := l.PutAccount(treasury); err != nil {
			return Result{}, err
		}
	}
	if g.TotalVestingFund, err = g.TotalVestingFund.Add(res.ToVestingFund); err != nil {
		return Result{}, err
	}
	if err := l.PutGlobalProperties(g); err != nil {
		return Result{}, err
	}
	if shares.Amount > 0 && ctx.Virtual != nil {
		if err := ctx.Virtual(&protocol.ProducerReward{Producer: ctx.Witness, VestingShares: shares}); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func (*Inflation) treasury(l *ledger.Ledger, g *ledger.GlobalProperties) (*ledger.Account, error) {
	if g.TreasuryAccount == "" {
		return nil, nil
	}
	a, err := l.Account(g.TreasuryAccount)
	if errors.Is(err, ledger.ErrUnknownAccount) {
		return nil, nil
	}
	return a, err
}

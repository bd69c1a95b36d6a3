// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// initGenesis writes the initial ledger directly into the irreversible base
// of the store.
func (c *Chain) initGenesis() error {
	gen := c.genesis
	l := ledger.New(c.store.DB())

	var allocated int64
	for _, acct := range gen.Accounts {
		allocated += acct.Balance + acct.Vesting
	}
	g := &ledger.GlobalProperties{
		HeadBlockNumber:          0,
		HeadBlockID:              ids.Empty,
		Time:                     gen.Time,
		CurrentSupply:            protocol.Tokens(gen.InitialSupply),
		CurrentDollarSupply:      protocol.Dollars(0),
		TotalVestingFund:         protocol.Tokens(0),
		TotalVestingShares:       protocol.Vests(0),
		MaximumBlockSize:         gen.MaximumBlockSize,
		AccountCreationFee:       protocol.Tokens(gen.AccountCreationFee),
		InflationRateBasisPoints: gen.InflationRateBasisPoints,
		RecentSlotsFilledHi:      ^uint64(0),
		RecentSlotsFilledLo:      ^uint64(0),
		ParticipationCount:       128,
		TreasuryAccount:          gen.TreasuryAccount,
		ChainID:                  gen.ChainID,
		LegacyChainID:            gen.LegacyID(),
	}

	for _, acct := range gen.Accounts {
		a := evaluators.NewAccount(acct.Name, gen.Time)
		auth := protocol.SingleKeyAuthority(acct.Key)
		a.Owner, a.Active, a.Posting, a.MemoKey = auth, auth, auth, acct.Key
		a.Balance = protocol.Tokens(acct.Balance)
		if acct.Vesting > 0 {
			if _, err := ledger.Vest(g, a, protocol.Tokens(acct.Vesting)); err != nil {
				return err
			}
		}
		a.Mana.CurrentMana = a.EffectiveVestingShares()
		if err := l.PutAccount(a); err != nil {
			return err
		}
	}

	// the treasury holds whatever the genesis did not allocate
	treasury, err := l.Account(gen.TreasuryAccount)
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount):
		treasury = evaluators.NewAccount(gen.TreasuryAccount, gen.Time)
		treasury.Owner = impossibleAuthority()
		treasury.Active = impossibleAuthority()
		treasury.Posting = impossibleAuthority()
	case err != nil:
		return err
	}
	treasury.Balance.Amount += gen.InitialSupply - allocated
	if err := l.PutAccount(treasury); err != nil {
		return err
	}

	version := gen.Hardforks[gen.InitialHardfork].Version
	names := make([]string, 0, len(gen.Witnesses))
	for _, w := range gen.Witnesses {
		if err := l.PutWitness(&ledger.Witness{
			Owner:               w.Name,
			Created:             gen.Time,
			SigningKey:          w.SigningKey,
			RunningVersion:      version,
			HardforkVersionVote: version,
			HardforkTimeVote:    gen.Time,
			AccountCreationFee:  protocol.Tokens(gen.AccountCreationFee),
			MaximumBlockSize:    gen.MaximumBlockSize,
		}); err != nil {
			return err
		}
		names = append(names, w.Name)
	}
	sort.Strings(names)
	if err := l.PutWitnessSchedule(&ledger.WitnessSchedule{
		CurrentShuffledWitnesses: names,
		NextShuffleBlockNum:      uint32(len(names)),
		MajorityVersion:          version,
	}); err != nil {
		return err
	}

	if err := l.PutHardforkProperty(&ledger.HardforkProperty{
		ProcessedHardforks:     []uint32{gen.Time},
		LastHardfork:           protocol.HardforkGenesis,
		CurrentHardforkVersion: gen.Hardforks[protocol.HardforkGenesis].Version,
		NextHardfork:           version,
		NextHardforkTime:       gen.Time,
	}); err != nil {
		return err
	}
	if err := l.PutBlockSummary(0, ids.Empty); err != nil {
		return err
	}
	if err := l.PutGlobalProperties(g); err != nil {
		return err
	}

	a := &applyContext{
		ledger:   l,
		now:      gen.Time,
		txIndex:  -1,
		hardfork: protocol.HardforkGenesis,
	}
	for i := protocol.HardforkGenesis + 1; i <= gen.InitialHardfork; i++ {
		if err := c.applyHardfork(a, i); err != nil {
			return fmt.Errorf("failed to apply hardfork %d at genesis: %w", i, err)
		}
	}

	if err := l.SetInitialized(); err != nil {
		return err
	}
	return c.store.Commit(0)
}

// impossibleAuthority can never be satisfied.
func impossibleAuthority() protocol.Authority {
	return protocol.Authority{WeightThreshold: 1}
}

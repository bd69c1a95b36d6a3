// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/events"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// processHardforks applies every hardfork that is due: scheduled by witness
// vote, reached by its table time and next in line.
func (c *Chain) processHardforks(a *applyContext) error {
	table := c.genesis.Hardforks
	for {
		hp, err := a.ledger.HardforkProperty()
		if err != nil {
			return err
		}
		next := hp.LastHardfork + 1
		if next >= protocol.NumHardforks {
			return nil
		}
		fork := table[next]
		due := hp.CurrentHardforkVersion.Less(fork.Version) &&
			a.now >= fork.Time &&
			!hp.NextHardfork.Less(fork.Version) &&
			hp.NextHardforkTime <= a.now
		if !due {
			return nil
		}
		if err := c.applyHardfork(a, next); err != nil {
			return err
		}
	}
}

// applyHardfork runs the migration of hardfork [i] and records it. Hardforks
// apply strictly in order.
func (c *Chain) applyHardfork(a *applyContext, i uint32) error {
	l := a.ledger
	hp, err := l.HardforkProperty()
	if err != nil {
		return err
	}
	if i != hp.LastHardfork+1 {
		return invariant("apply hardfork", fmt.Errorf("hardfork %d applied after %d", i, hp.LastHardfork))
	}

	if err := c.migrate(a, i); err != nil {
		return invariant(fmt.Sprintf("hardfork %d migration", i), err)
	}

	// the migration may have written hardfork state of its own
	if hp, err = l.HardforkProperty(); err != nil {
		return err
	}
	hp.LastHardfork = i
	hp.CurrentHardforkVersion = c.genesis.Hardforks[i].Version
	hp.ProcessedHardforks = append(hp.ProcessedHardforks, a.now)
	if err := l.PutHardforkProperty(hp); err != nil {
		return err
	}
	a.hardfork = i

	if err := c.bus.Publish(&events.Event{
		Kind:      events.HardforkApplied,
		BlockNum:  a.blockNum,
		BlockTime: a.now,
		BlockID:   a.blockID,
		TxIndex:   -1,
		Hardfork:  i,
	}); err != nil {
		return err
	}
	if err := c.applyOperation(a, &protocol.HardforkApplied{HardforkID: i}, true); err != nil {
		return err
	}
	c.log.Info("applied hardfork", "hardfork", i, "version", hp.CurrentHardforkVersion, "num", a.blockNum)
	return nil
}

// migrate runs the state change tied to hardfork [i], if any.
func (c *Chain) migrate(a *applyContext, i uint32) error {
	l := a.ledger
	switch i {
	case protocol.HardforkVestingRescale:
		return l.RescaleVestingShares(protocol.VestingRescaleFactor)

	case protocol.HardforkManaReset:
		return c.meter.Reset(a.evaluatorContext(c))

	case protocol.HardforkTreasuryRename:
		return renameTreasury(a)

	case protocol.HardforkChainID:
		g, err := l.GlobalProperties()
		if err != nil {
			return err
		}
		g.ChainIDSwitchTime = a.now
		return l.PutGlobalProperties(g)

	case protocol.HardforkGovernanceExpiry:
		expiration := a.now + protocol.GovernanceVoteExpirationPeriod
		return l.Accounts(func(acct *ledger.Account) error {
			if err := l.SetGovernanceExpiration(acct, expiration); err != nil {
				return err
			}
			return l.PutAccount(acct)
		})
	}
	return nil
}

// renameTreasury moves the treasury's funds to the system treasury account.
func renameTreasury(a *applyContext) error {
	l := a.ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	if g.TreasuryAccount == protocol.TreasuryAccountName {
		return nil
	}

	treasury, err := l.Account(protocol.TreasuryAccountName)
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount):
		treasury = evaluators.NewAccount(protocol.TreasuryAccountName, a.now)
		treasury.Owner = impossibleAuthority()
		treasury.Active = impossibleAuthority()
		treasury.Posting = impossibleAuthority()
	case err != nil:
		return err
	}

	old, err := l.Account(g.TreasuryAccount)
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount):
	case err != nil:
		return err
	default:
		if err := ledger.AdjustBalance(treasury, old.Balance); err != nil {
			return err
		}
		if err := ledger.AdjustBalance(treasury, old.DollarBalance); err != nil {
			return err
		}
		old.Balance.Amount = 0
		old.DollarBalance.Amount = 0
		if err := l.PutAccount(old); err != nil {
			return err
		}
	}
	if err := l.PutAccount(treasury); err != nil {
		return err
	}
	g.TreasuryAccount = protocol.TreasuryAccountName
	return l.PutGlobalProperties(g)
}

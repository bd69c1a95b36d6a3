// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

func applyTransfer(ctx *Context, op *protocol.Transfer) error {
	return transfer(ctx.Ledger, op.From, op.To, op.Amount)
}

func applyTransferToVesting(ctx *Context, op *protocol.TransferToVesting) error {
	l := ctx.Ledger
	to := op.To
	if to == "" {
		to = op.From
	}
	if err := debit(l, op.From, op.Amount); err != nil {
		return err
	}
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	acct, err := l.Account(to)
	if err != nil {
		return err
	}
	shares, err := ledger.Vest(g, acct, op.Amount)
	if err != nil {
		return err
	}
	if err := l.AdjustWitnessVotes(to, shares.Amount); err != nil {
		return err
	}
	if err := l.PutAccount(acct); err != nil {
		return err
	}
	return l.PutGlobalProperties(g)
}

func applyDelegateVestingShares(ctx *Context, op *protocol.DelegateVestingShares) error {
	l := ctx.Ledger
	delegator, err := l.Account(op.Delegator)
	if err != nil {
		return err
	}
	delegatee, err := l.Account(op.Delegatee)
	if err != nil {
		return err
	}

	current := protocol.Vests(0)
	existing, err := l.Delegation(op.Delegator, op.Delegatee)
	switch {
	case err == nil:
		current = existing.VestingShares
	case err != database.ErrNotFound:
		return err
	case op.VestingShares.Amount == 0:
		return rule("no delegation to remove")
	}

	delta := op.VestingShares.Amount - current.Amount
	switch {
	case delta == 0:
		return rule("delegation is unchanged")
	case delta > 0:
		available := delegator.VestingShares.Amount - delegator.DelegatedVestingShares.Amount
		if available < delta {
			return fmt.Errorf("%w: %d vesting shares available to delegate, %d requested", ErrInsufficientFunds, available, delta)
		}
		delegator.DelegatedVestingShares.Amount += delta
		delegatee.ReceivedVestingShares.Amount += delta
	default:
		// returned shares stay delegated until the return period passes
		returned := -delta
		delegatee.ReceivedVestingShares.Amount -= returned
		g, err := l.GlobalProperties()
		if err != nil {
			return err
		}
		expiration := &ledger.DelegationExpiration{
			Delegator:     op.Delegator,
			VestingShares: protocol.Vests(returned),
			Expiration:    ctx.Now + protocol.DelegationReturnPeriod,
		}
		if err := l.PutDelegationExpiration(expiration, g.NewObjectID()); err != nil {
			return err
		}
		if err := l.PutGlobalProperties(g); err != nil {
			return err
		}
	}

	if err := l.PutAccount(delegator); err != nil {
		return err
	}
	if err := l.PutAccount(delegatee); err != nil {
		return err
	}
	if op.VestingShares.Amount == 0 {
		return l.DeleteDelegation(existing)
	}
	return l.PutDelegation(&ledger.Delegation{
		Delegator:         op.Delegator,
		Delegatee:         op.Delegatee,
		VestingShares:     op.VestingShares,
		MinDelegationTime: ctx.Now,
	})
}

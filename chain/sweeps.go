// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// clearExpired runs the end of block sweeps in their fixed order.
func (c *Chain) clearExpired(a *applyContext) error {
	for _, sweep := range []struct {
		name string
		f    func(*applyContext) error
	}{
		{"orders", c.expireOrders},
		{"delegations", c.returnDelegations},
		{"transactions", expireTransactions},
		{"escrows", c.rejectUnratifiedEscrows},
		{"conversions", c.fillConversions},
		{"recoveries", c.expireRecoveryRequests},
		{"governance", c.expireGovernanceVotes},
	} {
		if err := sweep.f(a); err != nil {
			return c.classify(a, "sweep "+sweep.name, err)
		}
	}
	return nil
}

func credit(l *ledger.Ledger, name string, amount protocol.Asset) error {
	acct, err := l.Account(name)
	if err != nil {
		return err
	}
	if err := ledger.AdjustBalance(acct, amount); err != nil {
		return err
	}
	return l.PutAccount(acct)
}

// expireOrders refunds limit orders that reached their expiration.
func (c *Chain) expireOrders(a *applyContext) error {
	l := a.ledger
	orders, err := l.ExpiredLimitOrders(a.now)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if err := credit(l, o.Owner, o.ForSale); err != nil {
			return err
		}
		if err := l.DeleteLimitOrder(o); err != nil {
			return err
		}
		if err := c.applyOperation(a, &protocol.ExpiredOrder{
			Owner:   o.Owner,
			OrderID: o.OrderID,
			Refund:  o.ForSale,
		}, true); err != nil {
			return err
		}
	}
	return nil
}

// returnDelegations gives undelegated shares back to their delegator once the
// return period passed.
func (c *Chain) returnDelegations(a *applyContext) error {
	l := a.ledger
	keys, exps, err := l.DueDelegationExpirations(a.now)
	if err != nil {
		return err
	}
	for i, e := range exps {
		delegator, err := l.Account(e.Delegator)
		if err != nil {
			return err
		}
		delegated, err := delegator.DelegatedVestingShares.Sub(e.VestingShares)
		if err != nil {
			return err
		}
		if delegated.Amount < 0 {
			return invariant("return delegation", ledger.ErrNegativeBalance)
		}
		delegator.DelegatedVestingShares = delegated
		if err := l.PutAccount(delegator); err != nil {
			return err
		}
		if err := l.DeleteDelegationExpiration(keys[i]); err != nil {
			return err
		}
		if err := c.applyOperation(a, &protocol.ReturnVestingDelegation{
			Account:       e.Delegator,
			VestingShares: e.VestingShares,
		}, true); err != nil {
			return err
		}
	}
	return nil
}

func expireTransactions(a *applyContext) error {
	return a.ledger.ExpireTransactions(a.now)
}

// rejectUnratifiedEscrows refunds escrows not approved by their deadline.
func (c *Chain) rejectUnratifiedEscrows(a *applyContext) error {
	escrows, err := a.ledger.UnratifiedEscrows(a.now)
	if err != nil {
		return err
	}
	ctx := a.evaluatorContext(c)
	for _, e := range escrows {
		if err := evaluators.RejectEscrow(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// fillConversions converts due DOLLAR requests to TOKEN at the median price,
// or one to one while no price has been published.
func (c *Chain) fillConversions(a *applyContext) error {
	l := a.ledger
	requests, err := l.DueConvertRequests(a.now)
	if err != nil || len(requests) == 0 {
		return err
	}
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	for _, r := range requests {
		out := protocol.Tokens(r.Amount.Amount)
		if !g.CurrentMedianPrice.IsNull() {
			if out, err = g.CurrentMedianPrice.Convert(r.Amount); err != nil {
				return err
			}
		}
		if err := credit(l, r.Owner, out); err != nil {
			return err
		}
		if err := ledger.AdjustSupply(g, out); err != nil {
			return err
		}
		if err := ledger.AdjustSupply(g, protocol.Dollars(-r.Amount.Amount)); err != nil {
			return err
		}
		if err := l.DeleteConvertRequest(r); err != nil {
			return err
		}
		if err := l.PutGlobalProperties(g); err != nil {
			return err
		}
		if err := c.applyOperation(a, &protocol.FillConvertRequest{
			Owner:     r.Owner,
			RequestID: r.RequestID,
			AmountIn:  r.Amount,
			AmountOut: out,
		}, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) expireRecoveryRequests(a *applyContext) error {
	l := a.ledger
	requests, err := l.ExpiredRecoveryRequests(a.now)
	if err != nil {
		return err
	}
	for _, r := range requests {
		if err := l.DeleteRecoveryRequest(r); err != nil {
			return err
		}
		if err := c.applyOperation(a, &protocol.ExpiredRecoveryRequest{AccountToRecover: r.AccountToRecover}, true); err != nil {
			return err
		}
	}
	return nil
}

// expireGovernanceVotes drops the witness votes of accounts that have not
// voted for a governance period.
func (c *Chain) expireGovernanceVotes(a *applyContext) error {
	if !a.hasHardfork(protocol.HardforkGovernanceExpiry) {
		return nil
	}
	l := a.ledger
	names, err := l.ExpiredGovernanceAccounts(a.now)
	if err != nil {
		return err
	}
	for _, name := range names {
		acct, err := l.Account(name)
		if err != nil {
			return err
		}
		voted, err := l.WitnessVotes(name)
		if err != nil {
			return err
		}
		if err := l.AdjustWitnessVotes(name, -acct.VestingShares.Amount); err != nil {
			return err
		}
		for _, w := range voted {
			if err := l.DeleteWitnessVote(name, w); err != nil {
				return err
			}
		}
		acct.WitnessesVotedFor = 0
		if err := l.SetGovernanceExpiration(acct, 0); err != nil {
			return err
		}
		if err := l.PutAccount(acct); err != nil {
			return err
		}
		if err := c.applyOperation(a, &protocol.ExpiredGovernanceVotes{Account: name}, true); err != nil {
			return err
		}
	}
	return nil
}

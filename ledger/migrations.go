// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math"

	"github.com/ava-labs/witnessvm/protocol"
)

func scale(a *protocol.Asset, factor int64) error {
	amount, err := protocol.MulDiv(a.Amount, factor, 1)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}

// Delegations returns every delegation ordered by delegator then delegatee.
func (l *Ledger) Delegations() ([]*Delegation, error) {
	var out []*Delegation
	err := delegations.Iterate(l.db, nil, func(_ []byte, d *Delegation) (bool, error) {
		out = append(out, d)
		return true, nil
	})
	return out, err
}

// RescaleVestingShares multiplies every vesting share amount by [factor]:
// account balances, delegations, queued delegation returns, witness vote
// weights and the global share total. The vesting fund is unchanged, so the
// share price drops by the same factor.
func (l *Ledger) RescaleVestingShares(factor int64) error {
	var all []*Account
	if err := l.Accounts(func(a *Account) error {
		all = append(all, a)
		return nil
	}); err != nil {
		return err
	}
	for _, a := range all {
		for _, shares := range []*protocol.Asset{&a.VestingShares, &a.DelegatedVestingShares, &a.ReceivedVestingShares} {
			if err := scale(shares, factor); err != nil {
				return err
			}
		}
		if err := l.PutAccount(a); err != nil {
			return err
		}
	}

	ds, err := l.Delegations()
	if err != nil {
		return err
	}
	for _, d := range ds {
		if err := scale(&d.VestingShares, factor); err != nil {
			return err
		}
		if err := l.PutDelegation(d); err != nil {
			return err
		}
	}

	keys, exps, err := l.DueDelegationExpirations(math.MaxUint32)
	if err != nil {
		return err
	}
	for i, e := range exps {
		if err := scale(&e.VestingShares, factor); err != nil {
			return err
		}
		if err := delegExpiry.Put(l.db, keys[i], e); err != nil {
			return err
		}
	}

	ws, err := l.Witnesses()
	if err != nil {
		return err
	}
	for _, w := range ws {
		if w.Votes, err = protocol.MulDiv(w.Votes, factor, 1); err != nil {
			return err
		}
		if err := l.PutWitness(w); err != nil {
			return err
		}
	}

	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	if err := scale(&g.TotalVestingShares, factor); err != nil {
		return err
	}
	return l.PutGlobalProperties(g)
}

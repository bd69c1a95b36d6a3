// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/state"
)

// Objects below are indexed by a time so end of block sweeps can visit the
// ones that are due in order.

func due(now uint32) func([]byte) bool {
	return func(k []byte) bool { return state.Uint32At(k, 0) <= now }
}

func (l *Ledger) LimitOrder(owner string, orderID uint32) (*LimitOrder, error) {
	return orders.Get(l.db, state.Keys(owner, orderID))
}

func (l *Ledger) PutLimitOrder(o *LimitOrder) error {
	if err := orders.Put(l.db, state.Keys(o.Owner, o.OrderID), o); err != nil {
		return err
	}
	return orderExpiry.Put(l.db, state.Keys(o.Expiration, o.Owner, o.OrderID))
}

func (l *Ledger) DeleteLimitOrder(o *LimitOrder) error {
	if err := orders.Delete(l.db, state.Keys(o.Owner, o.OrderID)); err != nil {
		return err
	}
	return orderExpiry.Delete(l.db, state.Keys(o.Expiration, o.Owner, o.OrderID))
}

// ExpiredLimitOrders returns orders whose expiration is at or before [now].
func (l *Ledger) ExpiredLimitOrders(now uint32) ([]*LimitOrder, error) {
	keys, err := orderExpiry.Collect(l.db, nil, 0, due(now))
	if err != nil {
		return nil, err
	}
	out := make([]*LimitOrder, 0, len(keys))
	for _, k := range keys {
		owner, next := state.StringAt(k, 4)
		o, err := l.LimitOrder(owner, state.Uint32At(k, next))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (l *Ledger) Delegation(delegator, delegatee string) (*Delegation, error) {
	return delegations.Get(l.db, state.Keys(delegator, delegatee))
}

func (l *Ledger) PutDelegation(d *Delegation) error {
	return delegations.Put(l.db, state.Keys(d.Delegator, d.Delegatee), d)
}

func (l *Ledger) DeleteDelegation(d *Delegation) error {
	return delegations.Delete(l.db, state.Keys(d.Delegator, d.Delegatee))
}

// PutDelegationExpiration queues shares returning to their delegator. [id]
// disambiguates returns due at the same time.
func (l *Ledger) PutDelegationExpiration(e *DelegationExpiration, id uint64) error {
	return delegExpiry.Put(l.db, state.Keys(e.Expiration, id), e)
}

// DueDelegationExpirations returns queued returns due at or before [now]
// together with their keys.
func (l *Ledger) DueDelegationExpirations(now uint32) ([][]byte, []*DelegationExpiration, error) {
	var (
		keys [][]byte
		out  []*DelegationExpiration
	)
	err := delegExpiry.Iterate(l.db, nil, func(k []byte, e *DelegationExpiration) (bool, error) {
		if e.Expiration > now {
			return false, nil
		}
		keys = append(keys, append([]byte(nil), k...))
		out = append(out, e)
		return true, nil
	})
	return keys, out, err
}

func (l *Ledger) DeleteDelegationExpiration(k []byte) error {
	return delegExpiry.Delete(l.db, k)
}

func (l *Ledger) Escrow(from string, escrowID uint32) (*Escrow, error) {
	return escrows.Get(l.db, state.Keys(from, escrowID))
}

// PutEscrow stores [e]; unapproved escrows are indexed by their ratification
// deadline.
func (l *Ledger) PutEscrow(e *Escrow) error {
	if err := escrows.Put(l.db, state.Keys(e.From, e.EscrowID), e); err != nil {
		return err
	}
	k := state.Keys(e.RatificationDeadline, e.From, e.EscrowID)
	if e.Approved() {
		return escrowRatify.Delete(l.db, k)
	}
	return escrowRatify.Put(l.db, k)
}

func (l *Ledger) DeleteEscrow(e *Escrow) error {
	if err := escrows.Delete(l.db, state.Keys(e.From, e.EscrowID)); err != nil {
		return err
	}
	return escrowRatify.Delete(l.db, state.Keys(e.RatificationDeadline, e.From, e.EscrowID))
}

// UnratifiedEscrows returns escrows whose ratification deadline is at or
// before [now] and that are not fully approved.
func (l *Ledger) UnratifiedEscrows(now uint32) ([]*Escrow, error) {
	keys, err := escrowRatify.Collect(l.db, nil, 0, due(now))
	if err != nil {
		return nil, err
	}
	out := make([]*Escrow, 0, len(keys))
	for _, k := range keys {
		from, next := state.StringAt(k, 4)
		e, err := l.Escrow(from, state.Uint32At(k, next))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Ledger) ConvertRequest(owner string, requestID uint32) (*ConvertRequest, error) {
	return conversions.Get(l.db, state.Keys(owner, requestID))
}

func (l *Ledger) HasConvertRequest(owner string, requestID uint32) (bool, error) {
	return conversions.Has(l.db, state.Keys(owner, requestID))
}

func (l *Ledger) PutConvertRequest(c *ConvertRequest) error {
	if err := conversions.Put(l.db, state.Keys(c.Owner, c.RequestID), c); err != nil {
		return err
	}
	return convertDates.Put(l.db, state.Keys(c.ConversionDate, c.Owner, c.RequestID))
}

func (l *Ledger) DeleteConvertRequest(c *ConvertRequest) error {
	if err := conversions.Delete(l.db, state.Keys(c.Owner, c.RequestID)); err != nil {
		return err
	}
	return convertDates.Delete(l.db, state.Keys(c.ConversionDate, c.Owner, c.RequestID))
}

// DueConvertRequests returns conversions dated at or before [now].
func (l *Ledger) DueConvertRequests(now uint32) ([]*ConvertRequest, error) {
	keys, err := convertDates.Collect(l.db, nil, 0, due(now))
	if err != nil {
		return nil, err
	}
	out := make([]*ConvertRequest, 0, len(keys))
	for _, k := range keys {
		owner, next := state.StringAt(k, 4)
		c, err := l.ConvertRequest(owner, state.Uint32At(k, next))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (l *Ledger) RecoveryRequest(account string) (*RecoveryRequest, error) {
	return recoveries.Get(l.db, []byte(account))
}

func (l *Ledger) PutRecoveryRequest(r *RecoveryRequest) error {
	old, err := l.RecoveryRequest(r.AccountToRecover)
	switch {
	case err == nil:
		if err := recoveryDates.Delete(l.db, state.Keys(old.Expires, old.AccountToRecover)); err != nil {
			return err
		}
	case err != database.ErrNotFound:
		return err
	}
	if err := recoveries.Put(l.db, []byte(r.AccountToRecover), r); err != nil {
		return err
	}
	return recoveryDates.Put(l.db, state.Keys(r.Expires, r.AccountToRecover))
}

func (l *Ledger) DeleteRecoveryRequest(r *RecoveryRequest) error {
	if err := recoveries.Delete(l.db, []byte(r.AccountToRecover)); err != nil {
		return err
	}
	return recoveryDates.Delete(l.db, state.Keys(r.Expires, r.AccountToRecover))
}

// ExpiredRecoveryRequests returns requests that expire at or before [now].
func (l *Ledger) ExpiredRecoveryRequests(now uint32) ([]*RecoveryRequest, error) {
	keys, err := recoveryDates.Collect(l.db, nil, 0, due(now))
	if err != nil {
		return nil, err
	}
	out := make([]*RecoveryRequest, 0, len(keys))
	for _, k := range keys {
		account, _ := state.StringAt(k, 4)
		r, err := l.RecoveryRequest(account)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SetGovernanceExpiration moves [a]'s governance vote expiration to [at] and
// reindexes it. The account itself is not written.
func (l *Ledger) SetGovernanceExpiration(a *Account, at uint32) error {
	if a.GovernanceVoteExpiration != 0 {
		if err := govExpiry.Delete(l.db, state.Keys(a.GovernanceVoteExpiration, a.Name)); err != nil {
			return err
		}
	}
	a.GovernanceVoteExpiration = at
	if at == 0 {
		return nil
	}
	return govExpiry.Put(l.db, state.Keys(at, a.Name))
}

// ExpiredGovernanceAccounts lists accounts whose votes lapse at or before
// [now].
func (l *Ledger) ExpiredGovernanceAccounts(now uint32) ([]string, error) {
	keys, err := govExpiry.Collect(l.db, nil, 0, due(now))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i], _ = state.StringAt(k, 4)
	}
	return out, nil
}

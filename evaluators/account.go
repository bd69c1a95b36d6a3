// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// ownerUpdateInterval is the minimum time between owner authority changes.
const ownerUpdateInterval uint32 = 60 * 60

func applyAccountCreate(ctx *Context, op *protocol.AccountCreate) error {
	l := ctx.Ledger
	g, err := l.GlobalProperties()
	if err != nil {
		return err
	}
	if op.Fee.Amount < g.AccountCreationFee.Amount {
		return rule("account creation fee %s below %s", op.Fee, g.AccountCreationFee)
	}
	exists, err := l.HasAccount(op.NewAccountName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: account %q", ErrObjectExists, op.NewAccountName)
	}
	for _, auth := range []*protocol.Authority{&op.Owner, &op.Active, &op.Posting} {
		if err := requireAccounts(l, auth); err != nil {
			return err
		}
	}
	if err := debit(l, op.Creator, op.Fee); err != nil {
		return err
	}

	acct := NewAccount(op.NewAccountName, ctx.Now)
	acct.Owner = op.Owner
	acct.Active = op.Active
	acct.Posting = op.Posting
	acct.MemoKey = op.MemoKey
	acct.JSONMetadata = op.JSONMetadata
	acct.RecoveryAccount = op.Creator
	if op.Fee.Amount > 0 {
		if _, err := ledger.Vest(g, acct, op.Fee); err != nil {
			return err
		}
	}
	if err := RefreshGovernanceExpiration(ctx, acct); err != nil {
		return err
	}
	if err := l.PutAccount(acct); err != nil {
		return err
	}
	return l.PutGlobalProperties(g)
}

// NewAccount returns an empty account created at [now].
func NewAccount(name string, now uint32) *ledger.Account {
	return &ledger.Account{
		Name:                   name,
		Created:                now,
		Balance:                protocol.Tokens(0),
		DollarBalance:          protocol.Dollars(0),
		VestingShares:          protocol.Vests(0),
		DelegatedVestingShares: protocol.Vests(0),
		ReceivedVestingShares:  protocol.Vests(0),
		Mana:                   ledger.ManaBar{LastUpdateTime: now},
	}
}

func applyAccountUpdate(ctx *Context, op *protocol.AccountUpdate) error {
	l := ctx.Ledger
	acct, err := l.Account(op.Account)
	if err != nil {
		return err
	}
	if op.UpdateOwner {
		if ctx.Now < acct.LastOwnerUpdate+ownerUpdateInterval {
			return rule("owner authority can change once per hour")
		}
		if err := requireAccounts(l, &op.Owner); err != nil {
			return err
		}
		acct.PreviousOwner = acct.Owner
		acct.Owner = op.Owner
		acct.LastOwnerUpdate = ctx.Now
	}
	if op.UpdateActive {
		if err := requireAccounts(l, &op.Active); err != nil {
			return err
		}
		acct.Active = op.Active
	}
	if op.UpdatePosting {
		if err := requireAccounts(l, &op.Posting); err != nil {
			return err
		}
		acct.Posting = op.Posting
	}
	if !op.MemoKey.IsZero() {
		acct.MemoKey = op.MemoKey
	}
	if op.JSONMetadata != "" {
		acct.JSONMetadata = op.JSONMetadata
	}
	return l.PutAccount(acct)
}

func applyRequestAccountRecovery(ctx *Context, op *protocol.RequestAccountRecovery) error {
	l := ctx.Ledger
	acct, err := l.Account(op.AccountToRecover)
	if err != nil {
		return err
	}
	if acct.RecoveryAccount != op.RecoveryAccount {
		return rule("%q is not the recovery account of %q", op.RecoveryAccount, op.AccountToRecover)
	}

	existing, err := l.RecoveryRequest(op.AccountToRecover)
	switch {
	case err == database.ErrNotFound:
		existing = nil
	case err != nil:
		return err
	}

	// an empty authority cancels the pending request
	if op.NewOwnerAuthority.WeightThreshold == 0 {
		if existing == nil {
			return fmt.Errorf("%w: recovery request for %q", ErrObjectNotFound, op.AccountToRecover)
		}
		return l.DeleteRecoveryRequest(existing)
	}
	if op.NewOwnerAuthority.IsImpossible() {
		return rule("new owner authority can never be satisfied")
	}
	if err := requireAccounts(l, &op.NewOwnerAuthority); err != nil {
		return err
	}
	return l.PutRecoveryRequest(&ledger.RecoveryRequest{
		AccountToRecover:  op.AccountToRecover,
		NewOwnerAuthority: op.NewOwnerAuthority,
		Expires:           ctx.Now + protocol.RecoveryRequestExpiration,
	})
}

func applyRecoverAccount(ctx *Context, op *protocol.RecoverAccount) error {
	l := ctx.Ledger
	acct, err := l.Account(op.AccountToRecover)
	if err != nil {
		return err
	}
	if acct.LastAccountRecovery != 0 && ctx.Now < acct.LastAccountRecovery+ownerUpdateInterval {
		return rule("account can be recovered once per hour")
	}
	req, err := l.RecoveryRequest(op.AccountToRecover)
	if err != nil {
		return notFound(err, "recovery request for "+op.AccountToRecover)
	}
	if !req.NewOwnerAuthority.Equal(&op.NewOwnerAuthority) {
		return rule("new owner authority does not match the recovery request")
	}
	if acct.LastOwnerUpdate == 0 ||
		ctx.Now >= acct.LastOwnerUpdate+protocol.OwnerAuthRecoveryPeriod ||
		!acct.PreviousOwner.Equal(&op.RecentOwnerAuthority) {
		return rule("recent owner authority is not a recent owner of %q", op.AccountToRecover)
	}
	if err := requireAccounts(l, &op.NewOwnerAuthority); err != nil {
		return err
	}

	acct.PreviousOwner = acct.Owner
	acct.Owner = op.NewOwnerAuthority
	acct.LastOwnerUpdate = ctx.Now
	acct.LastAccountRecovery = ctx.Now
	if err := l.PutAccount(acct); err != nil {
		return err
	}
	return l.DeleteRecoveryRequest(req)
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"errors"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var errFastConfirmOperation = errors.New("fast confirmations are not applied inside transactions")

func applyWitnessUpdate(ctx *Context, op *protocol.WitnessUpdate) error {
	l := ctx.Ledger
	if _, err := l.Account(op.Owner); err != nil {
		return err
	}
	if op.Fee.Amount > 0 {
		// the fee is burned
		if err := debit(l, op.Owner, op.Fee); err != nil {
			return err
		}
		g, err := l.GlobalProperties()
		if err != nil {
			return err
		}
		if err := ledger.AdjustSupply(g, negate(op.Fee)); err != nil {
			return err
		}
		if err := l.PutGlobalProperties(g); err != nil {
			return err
		}
	}

	w, err := l.Witness(op.Owner)
	switch {
	case errors.Is(err, ledger.ErrUnknownWitness):
		w = &ledger.Witness{
			Owner:              op.Owner,
			Created:            ctx.Now,
			DollarExchangeRate: protocol.Price{Base: protocol.Dollars(0), Quote: protocol.Tokens(0)},
		}
	case err != nil:
		return err
	}
	w.URL = op.URL
	w.SigningKey = op.BlockSigningKey
	w.AccountCreationFee = op.AccountCreationFee
	w.MaximumBlockSize = op.MaximumBlockSize
	return l.PutWitness(w)
}

func applyAccountWitnessVote(ctx *Context, op *protocol.AccountWitnessVote) error {
	l := ctx.Ledger
	acct, err := l.Account(op.Account)
	if err != nil {
		return err
	}
	w, err := l.Witness(op.Witness)
	if err != nil {
		return err
	}
	voted, err := l.HasWitnessVote(op.Account, op.Witness)
	if err != nil {
		return err
	}

	weight := acct.VestingShares.Amount
	if op.Approve {
		if voted {
			return rule("%q already votes for %q", op.Account, op.Witness)
		}
		if acct.WitnessesVotedFor >= protocol.MaxWitnessVotesPerAccount {
			return rule("%q votes for too many witnesses", op.Account)
		}
		if err := l.PutWitnessVote(op.Account, op.Witness); err != nil {
			return err
		}
		acct.WitnessesVotedFor++
		w.Votes += weight
	} else {
		if !voted {
			return rule("%q does not vote for %q", op.Account, op.Witness)
		}
		if err := l.DeleteWitnessVote(op.Account, op.Witness); err != nil {
			return err
		}
		acct.WitnessesVotedFor--
		w.Votes -= weight
	}
	if err := RefreshGovernanceExpiration(ctx, acct); err != nil {
		return err
	}
	if err := l.PutWitness(w); err != nil {
		return err
	}
	return l.PutAccount(acct)
}

func applyFeedPublish(ctx *Context, op *protocol.FeedPublish) error {
	l := ctx.Ledger
	w, err := l.Witness(op.Publisher)
	if err != nil {
		return err
	}
	w.DollarExchangeRate = op.ExchangeRate
	w.LastDollarExchangeUpdate = ctx.Now
	return l.PutWitness(w)
}

func applyWitnessBlockApprove(*Context, *protocol.WitnessBlockApprove) error {
	return errFastConfirmOperation
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

func applyEscrowTransfer(ctx *Context, op *protocol.EscrowTransfer) error {
	l := ctx.Ledger
	if op.RatificationDeadline <= ctx.Now {
		return rule("ratification deadline must be in the future")
	}
	if op.EscrowExpiration <= ctx.Now {
		return rule("escrow expiration must be in the future")
	}
	if op.RatificationDeadline > ctx.Now+protocol.MaxEscrowRatificationWindow {
		return rule("ratification deadline too far in the future")
	}
	for _, name := range []string{op.To, op.Agent} {
		if _, err := l.Account(name); err != nil {
			return err
		}
	}
	_, err := l.Escrow(op.From, op.EscrowID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: escrow %s/%d", ErrObjectExists, op.From, op.EscrowID)
	case err != database.ErrNotFound:
		return err
	}

	for _, amount := range []protocol.Asset{op.TokenAmount, op.DollarAmount, op.Fee} {
		if amount.Amount == 0 {
			continue
		}
		if err := debit(l, op.From, amount); err != nil {
			return err
		}
	}
	return l.PutEscrow(&ledger.Escrow{
		EscrowID:             op.EscrowID,
		From:                 op.From,
		To:                   op.To,
		Agent:                op.Agent,
		RatificationDeadline: op.RatificationDeadline,
		EscrowExpiration:     op.EscrowExpiration,
		TokenBalance:         op.TokenAmount,
		DollarBalance:        op.DollarAmount,
		PendingFee:           op.Fee,
	})
}

func loadEscrow(l *ledger.Ledger, from, to, agent string, escrowID uint32) (*ledger.Escrow, error) {
	e, err := l.Escrow(from, escrowID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("escrow %s/%d", from, escrowID))
	}
	if e.To != to || e.Agent != agent {
		return nil, rule("escrow %s/%d parties do not match", from, escrowID)
	}
	return e, nil
}

// RejectEscrow refunds every balance of [e] to its sender and removes it.
func RejectEscrow(ctx *Context, e *ledger.Escrow) error {
	l := ctx.Ledger
	for _, amount := range []protocol.Asset{e.TokenBalance, e.DollarBalance, e.PendingFee} {
		if amount.Amount == 0 {
			continue
		}
		if err := credit(l, e.From, amount); err != nil {
			return err
		}
	}
	if err := l.DeleteEscrow(e); err != nil {
		return err
	}
	return ctx.virtual(&protocol.EscrowRejected{
		From:         e.From,
		To:           e.To,
		Agent:        e.Agent,
		EscrowID:     e.EscrowID,
		TokenAmount:  e.TokenBalance,
		DollarAmount: e.DollarBalance,
		Fee:          e.PendingFee,
	})
}

func applyEscrowApprove(ctx *Context, op *protocol.EscrowApprove) error {
	l := ctx.Ledger
	e, err := loadEscrow(l, op.From, op.To, op.Agent, op.EscrowID)
	if err != nil {
		return err
	}
	if ctx.Now >= e.RatificationDeadline {
		return rule("escrow ratification deadline has passed")
	}
	approved := &e.ToApproved
	if op.Who == e.Agent {
		approved = &e.AgentApproved
	}
	if *approved {
		return rule("%q already approved the escrow", op.Who)
	}
	if !op.Approve {
		return RejectEscrow(ctx, e)
	}
	*approved = true
	if e.Approved() && e.PendingFee.Amount > 0 {
		if err := credit(l, e.Agent, e.PendingFee); err != nil {
			return err
		}
		e.PendingFee.Amount = 0
	}
	return l.PutEscrow(e)
}

func applyEscrowRelease(ctx *Context, op *protocol.EscrowRelease) error {
	l := ctx.Ledger
	e, err := loadEscrow(l, op.From, op.To, op.Agent, op.EscrowID)
	if err != nil {
		return err
	}
	if !e.Approved() {
		return rule("escrow must be approved by all parties before release")
	}
	if op.TokenAmount.Amount > e.TokenBalance.Amount || op.DollarAmount.Amount > e.DollarBalance.Amount {
		return fmt.Errorf("%w: release exceeds escrow balance", ErrInsufficientFunds)
	}
	if ctx.Now < e.EscrowExpiration {
		// before expiration only the agent may release to either party,
		// otherwise funds flow away from the releasing party
		switch op.Who {
		case e.From:
			if op.Receiver != e.To {
				return rule("sender may only release to the recipient before expiration")
			}
		case e.To:
			if op.Receiver != e.From {
				return rule("recipient may only release to the sender before expiration")
			}
		}
	} else if op.Who == e.Agent {
		return rule("agent may not release after expiration")
	}

	for _, amount := range []protocol.Asset{op.TokenAmount, op.DollarAmount} {
		if amount.Amount == 0 {
			continue
		}
		if err := credit(l, op.Receiver, amount); err != nil {
			return err
		}
	}
	e.TokenBalance.Amount -= op.TokenAmount.Amount
	e.DollarBalance.Amount -= op.DollarAmount.Amount
	if e.TokenBalance.Amount == 0 && e.DollarBalance.Amount == 0 {
		return l.DeleteEscrow(e)
	}
	return l.PutEscrow(e)
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

func applyConvert(ctx *Context, op *protocol.Convert) error {
	l := ctx.Ledger
	exists, err := l.HasConvertRequest(op.Owner, op.RequestID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: conversion %s/%d", ErrObjectExists, op.Owner, op.RequestID)
	}
	if err := debit(l, op.Owner, op.Amount); err != nil {
		return err
	}
	return l.PutConvertRequest(&ledger.ConvertRequest{
		Owner:          op.Owner,
		RequestID:      op.RequestID,
		Amount:         op.Amount,
		ConversionDate: ctx.Now + protocol.ConversionDelay,
	})
}

// Orders rest on the book until cancelled or expired. There is no matching
// engine, so fill or kill orders can never be filled.
func applyLimitOrderCreate(ctx *Context, op *protocol.LimitOrderCreate) error {
	l := ctx.Ledger
	if op.Expiration <= ctx.Now {
		return rule("order expiration must be in the future")
	}
	if op.Expiration > ctx.Now+protocol.MaxLimitOrderExpiration {
		return rule("order expiration too far in the future")
	}
	if op.FillOrKill {
		return rule("fill or kill order could not be filled")
	}
	_, err := l.LimitOrder(op.Owner, op.OrderID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: order %s/%d", ErrObjectExists, op.Owner, op.OrderID)
	case err != database.ErrNotFound:
		return err
	}
	if err := debit(l, op.Owner, op.AmountToSell); err != nil {
		return err
	}
	return l.PutLimitOrder(&ledger.LimitOrder{
		Owner:      op.Owner,
		OrderID:    op.OrderID,
		Created:    ctx.Now,
		Expiration: op.Expiration,
		ForSale:    op.AmountToSell,
		SellPrice:  protocol.Price{Base: op.AmountToSell, Quote: op.MinToReceive},
	})
}

func applyLimitOrderCancel(ctx *Context, op *protocol.LimitOrderCancel) error {
	l := ctx.Ledger
	o, err := l.LimitOrder(op.Owner, op.OrderID)
	if err != nil {
		return notFound(err, fmt.Sprintf("order %s/%d", op.Owner, op.OrderID))
	}
	if err := credit(l, op.Owner, o.ForSale); err != nil {
		return err
	}
	return l.DeleteLimitOrder(o)
}

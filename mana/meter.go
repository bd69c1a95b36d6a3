// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mana meters the resources transactions consume against a
// regenerating allowance sized by each account's vesting shares.
package mana

import (
	"errors"
	"fmt"

	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// ErrInsufficientMana is returned when the paying account cannot afford a
// transaction. It is an ordinary transaction failure.
var ErrInsufficientMana = errors.New("insufficient mana")

// Meter is consulted while transactions are applied. Errors fail the
// transaction being applied.
type Meter interface {
	// OnOperation is called after each non virtual operation applied.
	OnOperation(ctx *evaluators.Context, op protocol.Operation) error
	// OnTransaction is called once all operations of [tx] applied. [size] is
	// the encoded size of the signed transaction.
	OnTransaction(ctx *evaluators.Context, tx *protocol.SignedTransaction, size int) error
	// OnBlock is called once per block after its transactions.
	OnBlock(ctx *evaluators.Context) error
	// Reset refills every mana bar.
	Reset(ctx *evaluators.Context) error
}

// Costs prices the resources a transaction uses, in mana units.
type Costs struct {
	PerByte      int64
	PerOperation int64
}

var DefaultCosts = Costs{
	PerByte:      1,
	PerOperation: 100,
}

// Default charges the first account authorizing a transaction. Metering is
// enforced once the mana reset hardfork is active.
type Default struct {
	costs Costs

	// usage of the block being applied
	blockUsage int64
}

func NewDefault(costs Costs) *Default {
	return &Default{costs: costs}
}

// BlockUsage returns the mana charged in the current block so far.
func (m *Default) BlockUsage() int64 { return m.blockUsage }

func (m *Default) OnOperation(ctx *evaluators.Context, op protocol.Operation) error {
	if op.Type().IsVirtual() {
		return nil
	}
	var auths protocol.RequiredAuthorities
	op.Authorities(&auths)
	return m.charge(ctx, payer(&auths), m.costs.PerOperation)
}

func (m *Default) OnTransaction(ctx *evaluators.Context, tx *protocol.SignedTransaction, size int) error {
	auths := tx.RequiredAuthorities()
	return m.charge(ctx, payer(&auths), int64(size)*m.costs.PerByte)
}

func (m *Default) OnBlock(*evaluators.Context) error {
	m.blockUsage = 0
	return nil
}

func (m *Default) Reset(ctx *evaluators.Context) error {
	var accounts []*ledger.Account
	if err := ctx.Ledger.Accounts(func(a *ledger.Account) error {
		accounts = append(accounts, a)
		return nil
	}); err != nil {
		return err
	}
	for _, a := range accounts {
		a.Mana = ledger.ManaBar{
			CurrentMana:    MaxMana(a),
			LastUpdateTime: ctx.Now,
		}
		if err := ctx.Ledger.PutAccount(a); err != nil {
			return err
		}
	}
	m.blockUsage = 0
	return nil
}

func (m *Default) charge(ctx *evaluators.Context, name string, cost int64) error {
	if name == "" || cost <= 0 || !ctx.HasHardfork(protocol.HardforkManaReset) {
		return nil
	}
	a, err := ctx.Ledger.Account(name)
	if err != nil {
		return err
	}
	if err := Regenerate(&a.Mana, MaxMana(a), ctx.Now); err != nil {
		return err
	}
	if a.Mana.CurrentMana < cost {
		return fmt.Errorf("%w: %q has %d, needs %d", ErrInsufficientMana, name, a.Mana.CurrentMana, cost)
	}
	a.Mana.CurrentMana -= cost
	m.blockUsage += cost
	return ctx.Ledger.PutAccount(a)
}

// payer is the account charged for a set of authorities.
func payer(auths *protocol.RequiredAuthorities) string {
	for _, names := range [][]string{auths.Active, auths.Owner, auths.Posting} {
		if len(names) > 0 {
			return names[0]
		}
	}
	return ""
}

// MaxMana is the size of [a]'s mana bar.
func MaxMana(a *ledger.Account) int64 {
	if shares := a.EffectiveVestingShares(); shares > 0 {
		return shares
	}
	return 0
}

// Regenerate brings [bar] up to date at [now]. A bar refills completely over
// protocol.ManaRegenerationSeconds.
func Regenerate(bar *ledger.ManaBar, limit int64, now uint32) error {
	if now <= bar.LastUpdateTime {
		if bar.CurrentMana > limit {
			bar.CurrentMana = limit
		}
		return nil
	}
	elapsed := now - bar.LastUpdateTime
	if elapsed > protocol.ManaRegenerationSeconds {
		elapsed = protocol.ManaRegenerationSeconds
	}
	regen, err := protocol.MulDiv(limit, int64(elapsed), int64(protocol.ManaRegenerationSeconds))
	if err != nil {
		return err
	}
	bar.CurrentMana += regen
	if bar.CurrentMana > limit {
		bar.CurrentMana = limit
	}
	bar.LastUpdateTime = now
	return nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var (
	ErrCustomOperationLimit = errors.New("custom operation limit reached for this block")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrObjectExists         = errors.New("object already exists")
	ErrObjectNotFound       = errors.New("object not found")
	ErrRuleViolation        = errors.New("operation rule violated")
)

func rule(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRuleViolation, fmt.Sprintf(format, args...))
}

func notFound(err error, what string) error {
	if err == database.ErrNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, what)
	}
	return err
}

// requireAccounts fails unless every account named by [auth] exists.
func requireAccounts(l *ledger.Ledger, auth *protocol.Authority) error {
	for _, a := range auth.AccountAuths {
		if _, err := l.Account(a.Name); err != nil {
			return err
		}
	}
	return nil
}

// transfer moves [amount] between two accounts and writes both.
func transfer(l *ledger.Ledger, from, to string, amount protocol.Asset) error {
	src, err := l.Account(from)
	if err != nil {
		return err
	}
	if err := requireFunds(src, amount); err != nil {
		return err
	}
	if err := ledger.AdjustBalance(src, negate(amount)); err != nil {
		return err
	}
	if from == to {
		if err := ledger.AdjustBalance(src, amount); err != nil {
			return err
		}
		return l.PutAccount(src)
	}
	dst, err := l.Account(to)
	if err != nil {
		return err
	}
	if err := ledger.AdjustBalance(dst, amount); err != nil {
		return err
	}
	if err := l.PutAccount(src); err != nil {
		return err
	}
	return l.PutAccount(dst)
}

// credit adds [amount] to [name] and writes the account.
func credit(l *ledger.Ledger, name string, amount protocol.Asset) error {
	a, err := l.Account(name)
	if err != nil {
		return err
	}
	if err := ledger.AdjustBalance(a, amount); err != nil {
		return err
	}
	return l.PutAccount(a)
}

// debit removes [amount] from [name] and writes the account.
func debit(l *ledger.Ledger, name string, amount protocol.Asset) error {
	a, err := l.Account(name)
	if err != nil {
		return err
	}
	if err := requireFunds(a, amount); err != nil {
		return err
	}
	if err := ledger.AdjustBalance(a, negate(amount)); err != nil {
		return err
	}
	return l.PutAccount(a)
}

func requireFunds(a *ledger.Account, amount protocol.Asset) error {
	if have := ledger.Balance(a, amount.Symbol); have.Amount < amount.Amount {
		return fmt.Errorf("%w: %q has %s, needs %s", ErrInsufficientFunds, a.Name, have, amount)
	}
	return nil
}

func negate(a protocol.Asset) protocol.Asset {
	return protocol.Asset{Amount: -a.Amount, Symbol: a.Symbol}
}

// RefreshGovernanceExpiration restarts [a]'s governance vote clock once the
// governance expiry hardfork is active.
func RefreshGovernanceExpiration(ctx *Context, a *ledger.Account) error {
	if !ctx.HasHardfork(protocol.HardforkGovernanceExpiry) {
		return nil
	}
	return ctx.Ledger.SetGovernanceExpiration(a, ctx.Now+protocol.GovernanceVoteExpirationPeriod)
}

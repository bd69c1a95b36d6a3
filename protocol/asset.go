// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrSymbolMismatch = errors.New("asset symbol mismatch")
	errDivideByZero   = errors.New("division by zero")
	errUnknownSymbol  = errors.New("unknown asset symbol")
)

// Symbol identifies one of the ledger's assets.
type Symbol uint8

const (
	TOKEN Symbol = iota
	DOLLAR
	VESTS
)

func (s Symbol) String() string {
	switch s {
	case TOKEN:
		return "TOKEN"
	case DOLLAR:
		return "DOLLAR"
	case VESTS:
		return "VESTS"
	default:
		return fmt.Sprintf("SYMBOL(%d)", uint8(s))
	}
}

func (s Symbol) Validate() error {
	if s > VESTS {
		return errUnknownSymbol
	}
	return nil
}

// Asset is an amount of one symbol.
type Asset struct {
	Amount int64  `serialize:"true" json:"amount"`
	Symbol Symbol `serialize:"true" json:"symbol"`
}

func Tokens(amount int64) Asset  { return Asset{Amount: amount, Symbol: TOKEN} }
func Dollars(amount int64) Asset { return Asset{Amount: amount, Symbol: DOLLAR} }
func Vests(amount int64) Asset   { return Asset{Amount: amount, Symbol: VESTS} }

func (a Asset) String() string { return fmt.Sprintf("%d %s", a.Amount, a.Symbol) }

func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, ErrSymbolMismatch
	}
	sum, err := AddInt64(a.Amount, b.Amount)
	return Asset{Amount: sum, Symbol: a.Symbol}, err
}

func (a Asset) Sub(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, ErrSymbolMismatch
	}
	diff, err := SubInt64(a.Amount, b.Amount)
	return Asset{Amount: diff, Symbol: a.Symbol}, err
}

// Price is the exchange rate Base:Quote.
type Price struct {
	Base  Asset `serialize:"true" json:"base"`
	Quote Asset `serialize:"true" json:"quote"`
}

func (p Price) IsNull() bool { return p.Base.Amount == 0 || p.Quote.Amount == 0 }

func (p Price) Validate() error {
	if p.Base.Amount <= 0 || p.Quote.Amount <= 0 {
		return errors.New("price must be positive")
	}
	if p.Base.Symbol == p.Quote.Symbol {
		return errors.New("price symbols must differ")
	}
	return nil
}

// Less orders prices of the same market by Base/Quote.
func (p Price) Less(o Price) bool {
	hi1, lo1 := bits.Mul64(uint64(p.Base.Amount), uint64(o.Quote.Amount))
	hi2, lo2 := bits.Mul64(uint64(o.Base.Amount), uint64(p.Quote.Amount))
	return hi1 < hi2 || (hi1 == hi2 && lo1 < lo2)
}

// Convert exchanges [a] through the price.
func (p Price) Convert(a Asset) (Asset, error) {
	switch a.Symbol {
	case p.Base.Symbol:
		amount, err := MulDiv(a.Amount, p.Quote.Amount, p.Base.Amount)
		return Asset{Amount: amount, Symbol: p.Quote.Symbol}, err
	case p.Quote.Symbol:
		amount, err := MulDiv(a.Amount, p.Base.Amount, p.Quote.Amount)
		return Asset{Amount: amount, Symbol: p.Base.Symbol}, err
	default:
		return Asset{}, ErrSymbolMismatch
	}
}

func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

func SubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// MulDiv returns a*b/c rounded down, computed with a 128 bit intermediate.
// All arguments must be non-negative.
func MulDiv(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, errDivideByZero
	}
	if a < 0 || b < 0 || c < 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, uint64(c))
	if quo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(quo), nil
}

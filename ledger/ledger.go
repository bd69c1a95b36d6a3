// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/protocol"
	"github.com/ava-labs/witnessvm/state"
)

// Table prefixes. Values are part of the persisted layout.
const (
	singletonPrefix byte = iota + 1
	accountPrefix
	witnessPrefix
	witnessVotePrefix
	transactionPrefix
	transactionExpiryPrefix
	blockSummaryPrefix
	orderPrefix
	orderExpiryPrefix
	delegationPrefix
	delegationExpiryPrefix
	escrowPrefix
	escrowRatificationPrefix
	convertPrefix
	convertDatePrefix
	recoveryPrefix
	recoveryExpiryPrefix
	governanceExpiryPrefix
	customOpPrefix
)

const (
	globalPropertiesKey byte = iota
	hardforkPropertyKey
	witnessScheduleKey
	isInitializedKey
)

// InitialVestsPerToken is the vesting share price before any tokens vest.
const InitialVestsPerToken int64 = 1000

var (
	ErrNegativeBalance = errors.New("insufficient balance")
	ErrSupplyUnderflow = errors.New("supply underflow")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownWitness  = errors.New("unknown witness")

	globals       = state.NewTable[GlobalProperties](singletonPrefix)
	hardforks     = state.NewTable[HardforkProperty](singletonPrefix)
	schedules     = state.NewTable[WitnessSchedule](singletonPrefix)
	initialized   = state.NewTable[flag](singletonPrefix)
	accounts      = state.NewTable[Account](accountPrefix)
	witnesses     = state.NewTable[Witness](witnessPrefix)
	witnessVotes  = state.NewIndex(witnessVotePrefix)
	transactions  = state.NewTable[TransactionRecord](transactionPrefix)
	txExpiry      = state.NewIndex(transactionExpiryPrefix)
	summaries     = state.NewTable[BlockSummary](blockSummaryPrefix)
	orders        = state.NewTable[LimitOrder](orderPrefix)
	orderExpiry   = state.NewIndex(orderExpiryPrefix)
	delegations   = state.NewTable[Delegation](delegationPrefix)
	delegExpiry   = state.NewTable[DelegationExpiration](delegationExpiryPrefix)
	escrows       = state.NewTable[Escrow](escrowPrefix)
	escrowRatify  = state.NewIndex(escrowRatificationPrefix)
	conversions   = state.NewTable[ConvertRequest](convertPrefix)
	convertDates  = state.NewIndex(convertDatePrefix)
	recoveries    = state.NewTable[RecoveryRequest](recoveryPrefix)
	recoveryDates = state.NewIndex(recoveryExpiryPrefix)
	govExpiry     = state.NewIndex(governanceExpiryPrefix)
	customOps     = state.NewTable[CustomOpCounter](customOpPrefix)
)

// Ledger reads and writes ledger objects in one view of the state.
type Ledger struct {
	db database.Database
}

func New(db database.Database) *Ledger { return &Ledger{db: db} }

func (l *Ledger) DB() database.Database { return l.db }

func key(k byte) []byte { return []byte{k} }

func (l *Ledger) IsInitialized() (bool, error) {
	return initialized.Has(l.db, key(isInitializedKey))
}

func (l *Ledger) SetInitialized() error {
	return initialized.Put(l.db, key(isInitializedKey), &flag{Set: true})
}

func (l *Ledger) GlobalProperties() (*GlobalProperties, error) {
	g, err := globals.Get(l.db, key(globalPropertiesKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read global properties: %w", err)
	}
	return g, nil
}

func (l *Ledger) PutGlobalProperties(g *GlobalProperties) error {
	return globals.Put(l.db, key(globalPropertiesKey), g)
}

func (l *Ledger) HardforkProperty() (*HardforkProperty, error) {
	h, err := hardforks.Get(l.db, key(hardforkPropertyKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read hardfork property: %w", err)
	}
	return h, nil
}

func (l *Ledger) PutHardforkProperty(h *HardforkProperty) error {
	return hardforks.Put(l.db, key(hardforkPropertyKey), h)
}

// HasHardfork reports whether hardfork [i] has been applied.
func (l *Ledger) HasHardfork(i uint32) (bool, error) {
	h, err := l.HardforkProperty()
	if err != nil {
		return false, err
	}
	return h.LastHardfork >= i, nil
}

func (l *Ledger) WitnessSchedule() (*WitnessSchedule, error) {
	s, err := schedules.Get(l.db, key(witnessScheduleKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read witness schedule: %w", err)
	}
	return s, nil
}

func (l *Ledger) PutWitnessSchedule(s *WitnessSchedule) error {
	return schedules.Put(l.db, key(witnessScheduleKey), s)
}

func (l *Ledger) Account(name string) (*Account, error) {
	a, err := accounts.Get(l.db, []byte(name))
	if err == database.ErrNotFound {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	return a, err
}

func (l *Ledger) HasAccount(name string) (bool, error) {
	return accounts.Has(l.db, []byte(name))
}

func (l *Ledger) PutAccount(a *Account) error {
	return accounts.Put(l.db, []byte(a.Name), a)
}

func (l *Ledger) DeleteAccount(name string) error {
	return accounts.Delete(l.db, []byte(name))
}

// Accounts visits every account in name order.
func (l *Ledger) Accounts(f func(*Account) error) error {
	var all []*Account
	err := accounts.Iterate(l.db, nil, func(_ []byte, a *Account) (bool, error) {
		all = append(all, a)
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, a := range all {
		if err := f(a); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Witness(owner string) (*Witness, error) {
	w, err := witnesses.Get(l.db, []byte(owner))
	if err == database.ErrNotFound {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWitness, owner)
	}
	return w, err
}

func (l *Ledger) PutWitness(w *Witness) error {
	return witnesses.Put(l.db, []byte(w.Owner), w)
}

// Witnesses returns every witness in name order.
func (l *Ledger) Witnesses() ([]*Witness, error) {
	var all []*Witness
	err := witnesses.Iterate(l.db, nil, func(_ []byte, w *Witness) (bool, error) {
		all = append(all, w)
		return true, nil
	})
	return all, err
}

// TopWitnesses returns up to [n] active witnesses ordered by votes, ties
// broken by name.
func (l *Ledger) TopWitnesses(n int) ([]*Witness, error) {
	all, err := l.Witnesses()
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, w := range all {
		if w.Active() {
			active = append(active, w)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Votes != active[j].Votes {
			return active[i].Votes > active[j].Votes
		}
		return active[i].Owner < active[j].Owner
	})
	if len(active) > n {
		active = active[:n]
	}
	return active, nil
}

func (l *Ledger) HasWitnessVote(account, witness string) (bool, error) {
	return witnessVotes.Has(l.db, state.Keys(account, witness))
}

func (l *Ledger) PutWitnessVote(account, witness string) error {
	return witnessVotes.Put(l.db, state.Keys(account, witness))
}

func (l *Ledger) DeleteWitnessVote(account, witness string) error {
	return witnessVotes.Delete(l.db, state.Keys(account, witness))
}

// WitnessVotes lists the witnesses [account] votes for.
func (l *Ledger) WitnessVotes(account string) ([]string, error) {
	keys, err := witnessVotes.Collect(l.db, state.Keys(account), 0, func([]byte) bool { return true })
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		_, next := state.StringAt(k, 0)
		out[i], _ = state.StringAt(k, next)
	}
	return out, nil
}

// AdjustWitnessVotes adds [delta] vesting shares to every witness [account]
// votes for.
func (l *Ledger) AdjustWitnessVotes(account string, delta int64) error {
	if delta == 0 {
		return nil
	}
	voted, err := l.WitnessVotes(account)
	if err != nil {
		return err
	}
	for _, owner := range voted {
		w, err := l.Witness(owner)
		if err != nil {
			return err
		}
		if w.Votes, err = protocol.AddInt64(w.Votes, delta); err != nil {
			return err
		}
		if err := l.PutWitness(w); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) IsKnownTransaction(txID ids.ID) (bool, error) {
	return transactions.Has(l.db, txID[:])
}

// RecordTransaction remembers [txID] until [expiration].
func (l *Ledger) RecordTransaction(txID ids.ID, expiration uint32) error {
	if err := transactions.Put(l.db, txID[:], &TransactionRecord{Expiration: expiration}); err != nil {
		return err
	}
	return txExpiry.Put(l.db, state.Keys(expiration, txID[:]))
}

// ExpireTransactions forgets transactions that expired strictly before
// [now].
func (l *Ledger) ExpireTransactions(now uint32) error {
	keys, err := txExpiry.Collect(l.db, nil, 0, func(k []byte) bool { return state.Uint32At(k, 0) < now })
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := transactions.Delete(l.db, k[4:]); err != nil {
			return err
		}
		if err := txExpiry.Delete(l.db, k); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) BlockSummary(num uint32) (*BlockSummary, error) {
	return summaries.Get(l.db, state.Keys(uint16(num)))
}

func (l *Ledger) PutBlockSummary(num uint32, id ids.ID) error {
	return summaries.Put(l.db, state.Keys(uint16(num)), &BlockSummary{BlockID: id})
}

// CustomOpCount returns how many custom operations [account] submitted in
// block [blockNum].
func (l *Ledger) CustomOpCount(account string, blockNum uint32) (uint32, error) {
	c, err := customOps.Get(l.db, []byte(account))
	switch {
	case err == database.ErrNotFound:
		return 0, nil
	case err != nil:
		return 0, err
	case c.BlockNum != blockNum:
		return 0, nil
	default:
		return c.Count, nil
	}
}

func (l *Ledger) PutCustomOpCount(account string, blockNum, count uint32) error {
	return customOps.Put(l.db, []byte(account), &CustomOpCounter{BlockNum: blockNum, Count: count})
}

func balance(a *Account, symbol protocol.Symbol) *protocol.Asset {
	switch symbol {
	case protocol.TOKEN:
		return &a.Balance
	case protocol.DOLLAR:
		return &a.DollarBalance
	case protocol.VESTS:
		return &a.VestingShares
	default:
		return nil
	}
}

// Balance returns [a]'s balance of [symbol].
func Balance(a *Account, symbol protocol.Symbol) protocol.Asset {
	if b := balance(a, symbol); b != nil {
		return *b
	}
	return protocol.Asset{Symbol: symbol}
}

// AdjustBalance adds [delta] to the matching balance of [a]. A balance never
// goes negative.
func AdjustBalance(a *Account, delta protocol.Asset) error {
	target := balance(a, delta.Symbol)
	if target == nil {
		return protocol.ErrSymbolMismatch
	}
	sum, err := target.Add(delta)
	if err != nil {
		return err
	}
	if sum.Amount < 0 {
		return fmt.Errorf("%w: %s has %s, needs %d more", ErrNegativeBalance, a.Name, target, -sum.Amount)
	}
	*target = sum
	return nil
}

// AdjustSupply adds [delta] to the matching supply counter.
func AdjustSupply(g *GlobalProperties, delta protocol.Asset) error {
	var target *protocol.Asset
	switch delta.Symbol {
	case protocol.TOKEN:
		target = &g.CurrentSupply
	case protocol.DOLLAR:
		target = &g.CurrentDollarSupply
	default:
		return protocol.ErrSymbolMismatch
	}
	sum, err := target.Add(delta)
	if err != nil {
		return err
	}
	if sum.Amount < 0 {
		return fmt.Errorf("%w: %s by %s", ErrSupplyUnderflow, target, delta)
	}
	*target = sum
	return nil
}

// ToVests converts liquid tokens to vesting shares at the current share
// price.
func ToVests(g *GlobalProperties, tokens protocol.Asset) (protocol.Asset, error) {
	if g.TotalVestingShares.Amount == 0 || g.TotalVestingFund.Amount == 0 {
		amount, err := protocol.MulDiv(tokens.Amount, InitialVestsPerToken, 1)
		return protocol.Vests(amount), err
	}
	amount, err := protocol.MulDiv(tokens.Amount, g.TotalVestingShares.Amount, g.TotalVestingFund.Amount)
	return protocol.Vests(amount), err
}

// Vest moves [tokens] from circulation into [a]'s vesting shares and returns
// the shares created.
func Vest(g *GlobalProperties, a *Account, tokens protocol.Asset) (protocol.Asset, error) {
	shares, err := ToVests(g, tokens)
	if err != nil {
		return protocol.Asset{}, err
	}
	if err := AdjustBalance(a, shares); err != nil {
		return protocol.Asset{}, err
	}
	if g.TotalVestingFund, err = g.TotalVestingFund.Add(tokens); err != nil {
		return protocol.Asset{}, err
	}
	if g.TotalVestingShares, err = g.TotalVestingShares.Add(shares); err != nil {
		return protocol.Asset{}, err
	}
	return shares, nil
}

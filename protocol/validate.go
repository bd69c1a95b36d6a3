// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")

	errNonPositiveAmount = errors.New("amount must be positive")
	errNegativeAmount    = errors.New("amount must not be negative")
	errWrongSymbol       = errors.New("wrong asset symbol")
	errSameAccount       = errors.New("accounts must differ")
	errMemoTooLarge      = errors.New("memo too large")
	errVirtualOperation  = errors.New("virtual operations cannot be submitted")
	errNoAuthorities     = errors.New("at least one authority is required")
)

func invalid(op Operation, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidOperation, op.Type(), err)
}

func validateNames(names ...string) error {
	for _, name := range names {
		if err := ValidateAccountName(name); err != nil {
			return err
		}
	}
	return nil
}

func positive(a Asset, symbols ...Symbol) error {
	if a.Amount <= 0 {
		return errNonPositiveAmount
	}
	return oneOf(a, symbols...)
}

func nonNegative(a Asset, symbols ...Symbol) error {
	if a.Amount < 0 {
		return errNegativeAmount
	}
	return oneOf(a, symbols...)
}

func oneOf(a Asset, symbols ...Symbol) error {
	for _, s := range symbols {
		if a.Symbol == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errWrongSymbol, a.Symbol)
}

func (op *Transfer) Validate() error {
	if err := validateNames(op.From, op.To); err != nil {
		return invalid(op, err)
	}
	if err := positive(op.Amount, TOKEN, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if len(op.Memo) > MaxMemoSize {
		return invalid(op, errMemoTooLarge)
	}
	return nil
}

func (op *TransferToVesting) Validate() error {
	if err := validateNames(op.From); err != nil {
		return invalid(op, err)
	}
	if op.To != "" {
		if err := validateNames(op.To); err != nil {
			return invalid(op, err)
		}
	}
	if err := positive(op.Amount, TOKEN); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *AccountCreate) Validate() error {
	if err := validateNames(op.Creator, op.NewAccountName); err != nil {
		return invalid(op, err)
	}
	if err := nonNegative(op.Fee, TOKEN); err != nil {
		return invalid(op, err)
	}
	for _, auth := range []*Authority{&op.Owner, &op.Active, &op.Posting} {
		if err := auth.Validate(); err != nil {
			return invalid(op, err)
		}
	}
	if op.Owner.IsImpossible() || op.Active.IsImpossible() {
		return invalid(op, errImpossibleAuthority)
	}
	if op.JSONMetadata != "" && !json.Valid([]byte(op.JSONMetadata)) {
		return invalid(op, errors.New("metadata is not valid JSON"))
	}
	return nil
}

func (op *AccountUpdate) Validate() error {
	if err := validateNames(op.Account); err != nil {
		return invalid(op, err)
	}
	if op.UpdateOwner {
		if err := op.Owner.Validate(); err != nil {
			return invalid(op, err)
		}
		if op.Owner.IsImpossible() {
			return invalid(op, errImpossibleAuthority)
		}
	}
	if op.UpdateActive {
		if err := op.Active.Validate(); err != nil {
			return invalid(op, err)
		}
		if op.Active.IsImpossible() {
			return invalid(op, errImpossibleAuthority)
		}
	}
	if op.UpdatePosting {
		if err := op.Posting.Validate(); err != nil {
			return invalid(op, err)
		}
	}
	if op.JSONMetadata != "" && !json.Valid([]byte(op.JSONMetadata)) {
		return invalid(op, errors.New("metadata is not valid JSON"))
	}
	return nil
}

func (op *WitnessUpdate) Validate() error {
	if err := validateNames(op.Owner); err != nil {
		return invalid(op, err)
	}
	if len(op.URL) == 0 || len(op.URL) > MaxURLLength {
		return invalid(op, errors.New("url must be set and bounded"))
	}
	if err := nonNegative(op.Fee, TOKEN); err != nil {
		return invalid(op, err)
	}
	if err := nonNegative(op.AccountCreationFee, TOKEN); err != nil {
		return invalid(op, err)
	}
	if op.MaximumBlockSize < MinBlockSize || op.MaximumBlockSize > MaxBlockSizeCap {
		return invalid(op, fmt.Errorf("maximum block size %d out of range", op.MaximumBlockSize))
	}
	return nil
}

func (op *AccountWitnessVote) Validate() error {
	if err := validateNames(op.Account, op.Witness); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *FeedPublish) Validate() error {
	if err := validateNames(op.Publisher); err != nil {
		return invalid(op, err)
	}
	if err := op.ExchangeRate.Validate(); err != nil {
		return invalid(op, err)
	}
	if op.ExchangeRate.Base.Symbol != DOLLAR || op.ExchangeRate.Quote.Symbol != TOKEN {
		return invalid(op, errWrongSymbol)
	}
	return nil
}

func (op *Convert) Validate() error {
	if err := validateNames(op.Owner); err != nil {
		return invalid(op, err)
	}
	if err := positive(op.Amount, DOLLAR); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *LimitOrderCreate) Validate() error {
	if err := validateNames(op.Owner); err != nil {
		return invalid(op, err)
	}
	if err := positive(op.AmountToSell, TOKEN, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if err := positive(op.MinToReceive, TOKEN, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if op.AmountToSell.Symbol == op.MinToReceive.Symbol {
		return invalid(op, errors.New("order must exchange different assets"))
	}
	return nil
}

func (op *LimitOrderCancel) Validate() error {
	if err := validateNames(op.Owner); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *DelegateVestingShares) Validate() error {
	if err := validateNames(op.Delegator, op.Delegatee); err != nil {
		return invalid(op, err)
	}
	if op.Delegator == op.Delegatee {
		return invalid(op, errSameAccount)
	}
	if err := nonNegative(op.VestingShares, VESTS); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *EscrowTransfer) Validate() error {
	if err := validateNames(op.From, op.To, op.Agent); err != nil {
		return invalid(op, err)
	}
	if op.Agent == op.From || op.Agent == op.To {
		return invalid(op, errors.New("agent must be a third party"))
	}
	if err := nonNegative(op.TokenAmount, TOKEN); err != nil {
		return invalid(op, err)
	}
	if err := nonNegative(op.DollarAmount, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if err := nonNegative(op.Fee, TOKEN, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if op.TokenAmount.Amount == 0 && op.DollarAmount.Amount == 0 {
		return invalid(op, errNonPositiveAmount)
	}
	if op.RatificationDeadline >= op.EscrowExpiration {
		return invalid(op, errors.New("ratification deadline must precede expiration"))
	}
	if op.JSONMeta != "" && !json.Valid([]byte(op.JSONMeta)) {
		return invalid(op, errors.New("metadata is not valid JSON"))
	}
	return nil
}

func (op *EscrowApprove) Validate() error {
	if err := validateNames(op.From, op.To, op.Agent, op.Who); err != nil {
		return invalid(op, err)
	}
	if op.Who != op.To && op.Who != op.Agent {
		return invalid(op, errors.New("only the recipient or agent may approve"))
	}
	return nil
}

func (op *EscrowRelease) Validate() error {
	if err := validateNames(op.From, op.To, op.Agent, op.Who, op.Receiver); err != nil {
		return invalid(op, err)
	}
	if op.Who != op.From && op.Who != op.To && op.Who != op.Agent {
		return invalid(op, errors.New("only a party to the escrow may release"))
	}
	if op.Receiver != op.From && op.Receiver != op.To {
		return invalid(op, errors.New("funds may only go to sender or recipient"))
	}
	if err := nonNegative(op.TokenAmount, TOKEN); err != nil {
		return invalid(op, err)
	}
	if err := nonNegative(op.DollarAmount, DOLLAR); err != nil {
		return invalid(op, err)
	}
	if op.TokenAmount.Amount == 0 && op.DollarAmount.Amount == 0 {
		return invalid(op, errNonPositiveAmount)
	}
	return nil
}

func (op *RequestAccountRecovery) Validate() error {
	if err := validateNames(op.RecoveryAccount, op.AccountToRecover); err != nil {
		return invalid(op, err)
	}
	if err := op.NewOwnerAuthority.Validate(); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *RecoverAccount) Validate() error {
	if err := validateNames(op.AccountToRecover); err != nil {
		return invalid(op, err)
	}
	if op.NewOwnerAuthority.Equal(&op.RecentOwnerAuthority) {
		return invalid(op, errors.New("cannot recover to the same authority"))
	}
	if op.NewOwnerAuthority.IsImpossible() {
		return invalid(op, errImpossibleAuthority)
	}
	if err := op.NewOwnerAuthority.Validate(); err != nil {
		return invalid(op, err)
	}
	return nil
}

func (op *Custom) Validate() error {
	if len(op.RequiredAuths) == 0 {
		return invalid(op, errNoAuthorities)
	}
	if err := validateNames(op.RequiredAuths...); err != nil {
		return invalid(op, err)
	}
	if len(op.Data) > MaxCustomDataSize {
		return invalid(op, errors.New("data too large"))
	}
	return nil
}

func (op *CustomJSON) Validate() error {
	if len(op.RequiredAuths)+len(op.RequiredPostingAuths) == 0 {
		return invalid(op, errNoAuthorities)
	}
	if err := validateNames(op.RequiredAuths...); err != nil {
		return invalid(op, err)
	}
	if err := validateNames(op.RequiredPostingAuths...); err != nil {
		return invalid(op, err)
	}
	if len(op.ID) > MaxCustomIDLength {
		return invalid(op, errors.New("id too long"))
	}
	if len(op.JSON) > MaxCustomDataSize || !json.Valid([]byte(op.JSON)) {
		return invalid(op, errors.New("json must be valid and bounded"))
	}
	return nil
}

func (op *WitnessBlockApprove) Validate() error {
	if err := validateNames(op.Witness); err != nil {
		return invalid(op, err)
	}
	return nil
}

func virtualValidate(op Operation) error { return invalid(op, errVirtualOperation) }

func (op *ProducerReward) Validate() error          { return virtualValidate(op) }
func (op *FillConvertRequest) Validate() error      { return virtualValidate(op) }
func (op *ExpiredOrder) Validate() error            { return virtualValidate(op) }
func (op *ReturnVestingDelegation) Validate() error { return virtualValidate(op) }
func (op *EscrowRejected) Validate() error          { return virtualValidate(op) }
func (op *ExpiredRecoveryRequest) Validate() error  { return virtualValidate(op) }
func (op *ExpiredGovernanceVotes) Validate() error  { return virtualValidate(op) }
func (op *ShutdownWitness) Validate() error         { return virtualValidate(op) }
func (op *HardforkApplied) Validate() error         { return virtualValidate(op) }

func (op *Transfer) Authorities(r *RequiredAuthorities) { r.Active = append(r.Active, op.From) }

func (op *TransferToVesting) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.From)
}

func (op *AccountCreate) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Creator)
}

func (op *AccountUpdate) Authorities(r *RequiredAuthorities) {
	if op.UpdateOwner {
		r.Owner = append(r.Owner, op.Account)
		return
	}
	r.Active = append(r.Active, op.Account)
}

func (op *WitnessUpdate) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Owner)
}

func (op *AccountWitnessVote) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Account)
}

func (op *FeedPublish) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Publisher)
}

func (op *Convert) Authorities(r *RequiredAuthorities) { r.Active = append(r.Active, op.Owner) }

func (op *LimitOrderCreate) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Owner)
}

func (op *LimitOrderCancel) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Owner)
}

func (op *DelegateVestingShares) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Delegator)
}

func (op *EscrowTransfer) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.From)
}

func (op *EscrowApprove) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Who)
}

func (op *EscrowRelease) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.Who)
}

func (op *RequestAccountRecovery) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.RecoveryAccount)
}

// Authorities requires both the new and a recent owner authority, neither of
// which belongs to a named account yet.
func (op *RecoverAccount) Authorities(r *RequiredAuthorities) {
	r.Other = append(r.Other, op.NewOwnerAuthority, op.RecentOwnerAuthority)
}

func (op *Custom) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.RequiredAuths...)
}

func (op *CustomJSON) Authorities(r *RequiredAuthorities) {
	r.Active = append(r.Active, op.RequiredAuths...)
	r.Posting = append(r.Posting, op.RequiredPostingAuths...)
}

// Authorities is empty; fast confirmations are checked against the witness
// signing key.
func (*WitnessBlockApprove) Authorities(*RequiredAuthorities) {}

func (*ProducerReward) Authorities(*RequiredAuthorities)          {}
func (*FillConvertRequest) Authorities(*RequiredAuthorities)      {}
func (*ExpiredOrder) Authorities(*RequiredAuthorities)            {}
func (*ReturnVestingDelegation) Authorities(*RequiredAuthorities) {}
func (*EscrowRejected) Authorities(*RequiredAuthorities)          {}
func (*ExpiredRecoveryRequest) Authorities(*RequiredAuthorities)  {}
func (*ExpiredGovernanceVotes) Authorities(*RequiredAuthorities)  {}
func (*ShutdownWitness) Authorities(*RequiredAuthorities)         {}
func (*HardforkApplied) Authorities(*RequiredAuthorities)         {}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// OpType is the closed set of operation kinds. The numeric value is also the
// codec type id of the operation.
type OpType uint32

const (
	TransferOp OpType = iota
	TransferToVestingOp
	AccountCreateOp
	AccountUpdateOp
	WitnessUpdateOp
	AccountWitnessVoteOp
	FeedPublishOp
	ConvertOp
	LimitOrderCreateOp
	LimitOrderCancelOp
	DelegateVestingSharesOp
	EscrowTransferOp
	EscrowApproveOp
	EscrowReleaseOp
	RequestAccountRecoveryOp
	RecoverAccountOp
	CustomOp
	CustomJSONOp
	WitnessBlockApproveOp

	// virtual operations
	ProducerRewardOp
	FillConvertRequestOp
	ExpiredOrderOp
	ReturnVestingDelegationOp
	EscrowRejectedOp
	ExpiredRecoveryRequestOp
	ExpiredGovernanceVotesOp
	ShutdownWitnessOp
	HardforkAppliedOp

	NumOpTypes
)

var opTypeNames = [NumOpTypes]string{
	"transfer",
	"transfer_to_vesting",
	"account_create",
	"account_update",
	"witness_update",
	"account_witness_vote",
	"feed_publish",
	"convert",
	"limit_order_create",
	"limit_order_cancel",
	"delegate_vesting_shares",
	"escrow_transfer",
	"escrow_approve",
	"escrow_release",
	"request_account_recovery",
	"recover_account",
	"custom",
	"custom_json",
	"witness_block_approve",
	"producer_reward",
	"fill_convert_request",
	"expired_order",
	"return_vesting_delegation",
	"escrow_rejected",
	"expired_recovery_request",
	"expired_governance_votes",
	"shutdown_witness",
	"hardfork_applied",
}

func (t OpType) String() string {
	if t < NumOpTypes {
		return opTypeNames[t]
	}
	return fmt.Sprintf("op(%d)", uint32(t))
}

// IsVirtual reports whether operations of this kind are synthesized by the
// chain and never submitted by users.
func (t OpType) IsVirtual() bool { return t >= ProducerRewardOp && t < NumOpTypes }

// IsCustom reports whether the kind counts against the per-block custom
// operation limit.
func (t OpType) IsCustom() bool { return t == CustomOp || t == CustomJSONOp }

// Operation is one ledger action.
type Operation interface {
	Type() OpType
	// Validate performs stateless checks.
	Validate() error
	// Authorities adds the authorities that must sign for this operation.
	Authorities(*RequiredAuthorities)
}

// operationPrototypes lists one value of every kind in OpType order. The
// codec registers them in this order.
func operationPrototypes() []Operation {
	return []Operation{
		&Transfer{},
		&TransferToVesting{},
		&AccountCreate{},
		&AccountUpdate{},
		&WitnessUpdate{},
		&AccountWitnessVote{},
		&FeedPublish{},
		&Convert{},
		&LimitOrderCreate{},
		&LimitOrderCancel{},
		&DelegateVestingShares{},
		&EscrowTransfer{},
		&EscrowApprove{},
		&EscrowRelease{},
		&RequestAccountRecovery{},
		&RecoverAccount{},
		&Custom{},
		&CustomJSON{},
		&WitnessBlockApprove{},
		&ProducerReward{},
		&FillConvertRequest{},
		&ExpiredOrder{},
		&ReturnVestingDelegation{},
		&EscrowRejected{},
		&ExpiredRecoveryRequest{},
		&ExpiredGovernanceVotes{},
		&ShutdownWitness{},
		&HardforkApplied{},
	}
}

type Transfer struct {
	From   string `serialize:"true" json:"from"`
	To     string `serialize:"true" json:"to"`
	Amount Asset  `serialize:"true" json:"amount"`
	Memo   string `serialize:"true" json:"memo"`
}

type TransferToVesting struct {
	From string `serialize:"true" json:"from"`
	// To defaults to From when empty.
	To     string `serialize:"true" json:"to"`
	Amount Asset  `serialize:"true" json:"amount"`
}

type AccountCreate struct {
	Fee            Asset     `serialize:"true" json:"fee"`
	Creator        string    `serialize:"true" json:"creator"`
	NewAccountName string    `serialize:"true" json:"newAccountName"`
	Owner          Authority `serialize:"true" json:"owner"`
	Active         Authority `serialize:"true" json:"active"`
	Posting        Authority `serialize:"true" json:"posting"`
	MemoKey        PublicKey `serialize:"true" json:"memoKey"`
	JSONMetadata   string    `serialize:"true" json:"jsonMetadata"`
}

// AccountUpdate replaces the authorities whose Update flag is set.
type AccountUpdate struct {
	Account       string    `serialize:"true" json:"account"`
	UpdateOwner   bool      `serialize:"true" json:"updateOwner"`
	Owner         Authority `serialize:"true" json:"owner"`
	UpdateActive  bool      `serialize:"true" json:"updateActive"`
	Active        Authority `serialize:"true" json:"active"`
	UpdatePosting bool      `serialize:"true" json:"updatePosting"`
	Posting       Authority `serialize:"true" json:"posting"`
	MemoKey       PublicKey `serialize:"true" json:"memoKey"`
	JSONMetadata  string    `serialize:"true" json:"jsonMetadata"`
}

type WitnessUpdate struct {
	Owner              string    `serialize:"true" json:"owner"`
	URL                string    `serialize:"true" json:"url"`
	BlockSigningKey    PublicKey `serialize:"true" json:"blockSigningKey"`
	AccountCreationFee Asset     `serialize:"true" json:"accountCreationFee"`
	MaximumBlockSize   uint32    `serialize:"true" json:"maximumBlockSize"`
	Fee                Asset     `serialize:"true" json:"fee"`
}

type AccountWitnessVote struct {
	Account string `serialize:"true" json:"account"`
	Witness string `serialize:"true" json:"witness"`
	Approve bool   `serialize:"true" json:"approve"`
}

type FeedPublish struct {
	Publisher    string `serialize:"true" json:"publisher"`
	ExchangeRate Price  `serialize:"true" json:"exchangeRate"`
}

type Convert struct {
	Owner     string `serialize:"true" json:"owner"`
	RequestID uint32 `serialize:"true" json:"requestID"`
	Amount    Asset  `serialize:"true" json:"amount"`
}

type LimitOrderCreate struct {
	Owner        string `serialize:"true" json:"owner"`
	OrderID      uint32 `serialize:"true" json:"orderID"`
	AmountToSell Asset  `serialize:"true" json:"amountToSell"`
	MinToReceive Asset  `serialize:"true" json:"minToReceive"`
	FillOrKill   bool   `serialize:"true" json:"fillOrKill"`
	Expiration   uint32 `serialize:"true" json:"expiration"`
}

type LimitOrderCancel struct {
	Owner   string `serialize:"true" json:"owner"`
	OrderID uint32 `serialize:"true" json:"orderID"`
}

type DelegateVestingShares struct {
	Delegator     string `serialize:"true" json:"delegator"`
	Delegatee     string `serialize:"true" json:"delegatee"`
	VestingShares Asset  `serialize:"true" json:"vestingShares"`
}

type EscrowTransfer struct {
	From                 string `serialize:"true" json:"from"`
	To                   string `serialize:"true" json:"to"`
	Agent                string `serialize:"true" json:"agent"`
	EscrowID             uint32 `serialize:"true" json:"escrowID"`
	TokenAmount          Asset  `serialize:"true" json:"tokenAmount"`
	DollarAmount         Asset  `serialize:"true" json:"dollarAmount"`
	Fee                  Asset  `serialize:"true" json:"fee"`
	RatificationDeadline uint32 `serialize:"true" json:"ratificationDeadline"`
	EscrowExpiration     uint32 `serialize:"true" json:"escrowExpiration"`
	JSONMeta             string `serialize:"true" json:"jsonMeta"`
}

type EscrowApprove struct {
	From     string `serialize:"true" json:"from"`
	To       string `serialize:"true" json:"to"`
	Agent    string `serialize:"true" json:"agent"`
	Who      string `serialize:"true" json:"who"`
	EscrowID uint32 `serialize:"true" json:"escrowID"`
	Approve  bool   `serialize:"true" json:"approve"`
}

type EscrowRelease struct {
	From         string `serialize:"true" json:"from"`
	To           string `serialize:"true" json:"to"`
	Agent        string `serialize:"true" json:"agent"`
	Who          string `serialize:"true" json:"who"`
	Receiver     string `serialize:"true" json:"receiver"`
	EscrowID     uint32 `serialize:"true" json:"escrowID"`
	TokenAmount  Asset  `serialize:"true" json:"tokenAmount"`
	DollarAmount Asset  `serialize:"true" json:"dollarAmount"`
}

type RequestAccountRecovery struct {
	RecoveryAccount   string    `serialize:"true" json:"recoveryAccount"`
	AccountToRecover  string    `serialize:"true" json:"accountToRecover"`
	NewOwnerAuthority Authority `serialize:"true" json:"newOwnerAuthority"`
}

type RecoverAccount struct {
	AccountToRecover     string    `serialize:"true" json:"accountToRecover"`
	NewOwnerAuthority    Authority `serialize:"true" json:"newOwnerAuthority"`
	RecentOwnerAuthority Authority `serialize:"true" json:"recentOwnerAuthority"`
}

// Custom carries application data the chain does not interpret.
type Custom struct {
	RequiredAuths []string `serialize:"true" json:"requiredAuths"`
	ID            uint16   `serialize:"true" json:"id"`
	Data          []byte   `serialize:"true" json:"data"`
}

type CustomJSON struct {
	RequiredAuths        []string `serialize:"true" json:"requiredAuths"`
	RequiredPostingAuths []string `serialize:"true" json:"requiredPostingAuths"`
	ID                   string   `serialize:"true" json:"id"`
	JSON                 string   `serialize:"true" json:"json"`
}

// WitnessBlockApprove is a fast confirmation of a block by a scheduled
// witness. It is signed with the witness signing key and is never included in
// a block.
type WitnessBlockApprove struct {
	Witness string `serialize:"true" json:"witness"`
	BlockID ids.ID `serialize:"true" json:"blockID"`
}

type ProducerReward struct {
	Producer      string `serialize:"true" json:"producer"`
	VestingShares Asset  `serialize:"true" json:"vestingShares"`
}

type FillConvertRequest struct {
	Owner     string `serialize:"true" json:"owner"`
	RequestID uint32 `serialize:"true" json:"requestID"`
	AmountIn  Asset  `serialize:"true" json:"amountIn"`
	AmountOut Asset  `serialize:"true" json:"amountOut"`
}

type ExpiredOrder struct {
	Owner   string `serialize:"true" json:"owner"`
	OrderID uint32 `serialize:"true" json:"orderID"`
	Refund  Asset  `serialize:"true" json:"refund"`
}

type ReturnVestingDelegation struct {
	Account       string `serialize:"true" json:"account"`
	VestingShares Asset  `serialize:"true" json:"vestingShares"`
}

type EscrowRejected struct {
	From         string `serialize:"true" json:"from"`
	To           string `serialize:"true" json:"to"`
	Agent        string `serialize:"true" json:"agent"`
	EscrowID     uint32 `serialize:"true" json:"escrowID"`
	TokenAmount  Asset  `serialize:"true" json:"tokenAmount"`
	DollarAmount Asset  `serialize:"true" json:"dollarAmount"`
	Fee          Asset  `serialize:"true" json:"fee"`
}

type ExpiredRecoveryRequest struct {
	AccountToRecover string `serialize:"true" json:"accountToRecover"`
}

type ExpiredGovernanceVotes struct {
	Account string `serialize:"true" json:"account"`
}

type ShutdownWitness struct {
	Owner string `serialize:"true" json:"owner"`
}

type HardforkApplied struct {
	HardforkID uint32 `serialize:"true" json:"hardforkID"`
}

func (*Transfer) Type() OpType               { return TransferOp }
func (*TransferToVesting) Type() OpType      { return TransferToVestingOp }
func (*AccountCreate) Type() OpType          { return AccountCreateOp }
func (*AccountUpdate) Type() OpType          { return AccountUpdateOp }
func (*WitnessUpdate) Type() OpType          { return WitnessUpdateOp }
func (*AccountWitnessVote) Type() OpType     { return AccountWitnessVoteOp }
func (*FeedPublish) Type() OpType            { return FeedPublishOp }
func (*Convert) Type() OpType                { return ConvertOp }
func (*LimitOrderCreate) Type() OpType       { return LimitOrderCreateOp }
func (*LimitOrderCancel) Type() OpType       { return LimitOrderCancelOp }
func (*DelegateVestingShares) Type() OpType  { return DelegateVestingSharesOp }
func (*EscrowTransfer) Type() OpType         { return EscrowTransferOp }
func (*EscrowApprove) Type() OpType          { return EscrowApproveOp }
func (*EscrowRelease) Type() OpType          { return EscrowReleaseOp }
func (*RequestAccountRecovery) Type() OpType { return RequestAccountRecoveryOp }
func (*RecoverAccount) Type() OpType         { return RecoverAccountOp }
func (*Custom) Type() OpType                 { return CustomOp }
func (*CustomJSON) Type() OpType             { return CustomJSONOp }
func (*WitnessBlockApprove) Type() OpType    { return WitnessBlockApproveOp }

func (*ProducerReward) Type() OpType          { return ProducerRewardOp }
func (*FillConvertRequest) Type() OpType      { return FillConvertRequestOp }
func (*ExpiredOrder) Type() OpType            { return ExpiredOrderOp }
func (*ReturnVestingDelegation) Type() OpType { return ReturnVestingDelegationOp }
func (*EscrowRejected) Type() OpType          { return EscrowRejectedOp }
func (*ExpiredRecoveryRequest) Type() OpType  { return ExpiredRecoveryRequestOp }
func (*ExpiredGovernanceVotes) Type() OpType  { return ExpiredGovernanceVotesOp }
func (*ShutdownWitness) Type() OpType         { return ShutdownWitnessOp }
func (*HardforkApplied) Type() OpType         { return HardforkAppliedOp }

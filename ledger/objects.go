// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/protocol"
)

// GlobalProperties are the chain wide counters updated every block.
type GlobalProperties struct {
	HeadBlockNumber uint32 `serialize:"true" json:"headBlockNumber"`
	HeadBlockID     ids.ID `serialize:"true" json:"headBlockID"`
	Time            uint32 `serialize:"true" json:"time"`
	CurrentWitness  string `serialize:"true" json:"currentWitness"`

	LastIrreversibleBlockNum uint32 `serialize:"true" json:"lastIrreversibleBlockNum"`

	CurrentSupply       protocol.Asset `serialize:"true" json:"currentSupply"`
	CurrentDollarSupply protocol.Asset `serialize:"true" json:"currentDollarSupply"`
	TotalVestingFund    protocol.Asset `serialize:"true" json:"totalVestingFund"`
	TotalVestingShares  protocol.Asset `serialize:"true" json:"totalVestingShares"`
	CurrentMedianPrice  protocol.Price `serialize:"true" json:"currentMedianPrice"`

	MaximumBlockSize         uint32         `serialize:"true" json:"maximumBlockSize"`
	AccountCreationFee       protocol.Asset `serialize:"true" json:"accountCreationFee"`
	InflationRateBasisPoints int64          `serialize:"true" json:"inflationRateBasisPoints"`

	// CurrentAslot is the absolute slot number of the head block. Missed
	// slots advance it too.
	CurrentAslot uint64 `serialize:"true" json:"currentAslot"`
	// RecentSlotsFilled is a 128 bit window of the latest slots, the low bit
	// being the head slot. ParticipationCount is its population count.
	RecentSlotsFilledHi uint64 `serialize:"true" json:"recentSlotsFilledHi"`
	RecentSlotsFilledLo uint64 `serialize:"true" json:"recentSlotsFilledLo"`
	ParticipationCount  uint8  `serialize:"true" json:"participationCount"`

	TreasuryAccount string `serialize:"true" json:"treasuryAccount"`

	ChainID       ids.ID `serialize:"true" json:"chainID"`
	LegacyChainID ids.ID `serialize:"true" json:"legacyChainID"`
	// ChainIDSwitchTime is when the chain id hardfork was applied. Zero until
	// then.
	ChainIDSwitchTime uint32 `serialize:"true" json:"chainIDSwitchTime"`

	NextObjectID uint64 `serialize:"true" json:"nextObjectID"`
}

// NewObjectID hands out a unique id for keyed objects that have no natural
// key.
func (g *GlobalProperties) NewObjectID() uint64 {
	id := g.NextObjectID
	g.NextObjectID++
	return id
}

// HardforkProperty tracks hardfork progress.
type HardforkProperty struct {
	// ProcessedHardforks holds the application time of each applied hardfork.
	ProcessedHardforks     []uint32         `serialize:"true" json:"processedHardforks"`
	LastHardfork           uint32           `serialize:"true" json:"lastHardfork"`
	CurrentHardforkVersion protocol.Version `serialize:"true" json:"currentHardforkVersion"`
	// NextHardfork and NextHardforkTime are set once a supermajority of
	// scheduled witnesses vote for them.
	NextHardfork     protocol.Version `serialize:"true" json:"nextHardfork"`
	NextHardforkTime uint32           `serialize:"true" json:"nextHardforkTime"`
}

type WitnessSchedule struct {
	CurrentShuffledWitnesses []string         `serialize:"true" json:"currentShuffledWitnesses"`
	NextShuffleBlockNum      uint32           `serialize:"true" json:"nextShuffleBlockNum"`
	MajorityVersion          protocol.Version `serialize:"true" json:"majorityVersion"`
}

func (s *WitnessSchedule) NumScheduled() int { return len(s.CurrentShuffledWitnesses) }

// ManaBar is a regenerating allowance.
type ManaBar struct {
	CurrentMana    int64  `serialize:"true" json:"currentMana"`
	LastUpdateTime uint32 `serialize:"true" json:"lastUpdateTime"`
}

type Account struct {
	Name         string             `serialize:"true" json:"name"`
	Owner        protocol.Authority `serialize:"true" json:"owner"`
	Active       protocol.Authority `serialize:"true" json:"active"`
	Posting      protocol.Authority `serialize:"true" json:"posting"`
	MemoKey      protocol.PublicKey `serialize:"true" json:"memoKey"`
	JSONMetadata string             `serialize:"true" json:"jsonMetadata"`
	Created      uint32             `serialize:"true" json:"created"`

	RecoveryAccount     string             `serialize:"true" json:"recoveryAccount"`
	PreviousOwner       protocol.Authority `serialize:"true" json:"previousOwner"`
	LastOwnerUpdate     uint32             `serialize:"true" json:"lastOwnerUpdate"`
	LastAccountRecovery uint32             `serialize:"true" json:"lastAccountRecovery"`

	Balance                protocol.Asset `serialize:"true" json:"balance"`
	DollarBalance          protocol.Asset `serialize:"true" json:"dollarBalance"`
	VestingShares          protocol.Asset `serialize:"true" json:"vestingShares"`
	DelegatedVestingShares protocol.Asset `serialize:"true" json:"delegatedVestingShares"`
	ReceivedVestingShares  protocol.Asset `serialize:"true" json:"receivedVestingShares"`

	WitnessesVotedFor uint16  `serialize:"true" json:"witnessesVotedFor"`
	Mana              ManaBar `serialize:"true" json:"mana"`

	// GovernanceVoteExpiration is when the account's witness votes lapse.
	// Zero means never.
	GovernanceVoteExpiration uint32 `serialize:"true" json:"governanceVoteExpiration"`
}

// EffectiveVestingShares is owned plus received minus delegated shares.
func (a *Account) EffectiveVestingShares() int64 {
	return a.VestingShares.Amount - a.DelegatedVestingShares.Amount + a.ReceivedVestingShares.Amount
}

type Witness struct {
	Owner      string             `serialize:"true" json:"owner"`
	Created    uint32             `serialize:"true" json:"created"`
	URL        string             `serialize:"true" json:"url"`
	SigningKey protocol.PublicKey `serialize:"true" json:"signingKey"`

	// Votes is the vesting share weight of the accounts approving it.
	Votes int64 `serialize:"true" json:"votes"`

	TotalMissed           uint32 `serialize:"true" json:"totalMissed"`
	LastAslot             uint64 `serialize:"true" json:"lastAslot"`
	LastConfirmedBlockNum uint32 `serialize:"true" json:"lastConfirmedBlockNum"`

	RunningVersion      protocol.Version `serialize:"true" json:"runningVersion"`
	HardforkVersionVote protocol.Version `serialize:"true" json:"hardforkVersionVote"`
	HardforkTimeVote    uint32           `serialize:"true" json:"hardforkTimeVote"`

	AccountCreationFee       protocol.Asset `serialize:"true" json:"accountCreationFee"`
	MaximumBlockSize         uint32         `serialize:"true" json:"maximumBlockSize"`
	DollarExchangeRate       protocol.Price `serialize:"true" json:"dollarExchangeRate"`
	LastDollarExchangeUpdate uint32         `serialize:"true" json:"lastDollarExchangeUpdate"`
}

// Active reports whether the witness may produce blocks.
func (w *Witness) Active() bool { return !w.SigningKey.IsZero() }

// TransactionRecord remembers an applied transaction until it expires.
type TransactionRecord struct {
	Expiration uint32 `serialize:"true"`
}

// BlockSummary is kept for the latest 65536 blocks for TaPoS checks.
type BlockSummary struct {
	BlockID ids.ID `serialize:"true"`
}

type LimitOrder struct {
	Owner      string         `serialize:"true" json:"owner"`
	OrderID    uint32         `serialize:"true" json:"orderID"`
	Created    uint32         `serialize:"true" json:"created"`
	Expiration uint32         `serialize:"true" json:"expiration"`
	ForSale    protocol.Asset `serialize:"true" json:"forSale"`
	SellPrice  protocol.Price `serialize:"true" json:"sellPrice"`
}

type Delegation struct {
	Delegator         string         `serialize:"true" json:"delegator"`
	Delegatee         string         `serialize:"true" json:"delegatee"`
	VestingShares     protocol.Asset `serialize:"true" json:"vestingShares"`
	MinDelegationTime uint32         `serialize:"true" json:"minDelegationTime"`
}

// DelegationExpiration holds shares returning to a delegator.
type DelegationExpiration struct {
	Delegator     string         `serialize:"true"`
	VestingShares protocol.Asset `serialize:"true"`
	Expiration    uint32         `serialize:"true"`
}

type Escrow struct {
	EscrowID             uint32         `serialize:"true" json:"escrowID"`
	From                 string         `serialize:"true" json:"from"`
	To                   string         `serialize:"true" json:"to"`
	Agent                string         `serialize:"true" json:"agent"`
	RatificationDeadline uint32         `serialize:"true" json:"ratificationDeadline"`
	EscrowExpiration     uint32         `serialize:"true" json:"escrowExpiration"`
	TokenBalance         protocol.Asset `serialize:"true" json:"tokenBalance"`
	DollarBalance        protocol.Asset `serialize:"true" json:"dollarBalance"`
	PendingFee           protocol.Asset `serialize:"true" json:"pendingFee"`
	ToApproved           bool           `serialize:"true" json:"toApproved"`
	AgentApproved        bool           `serialize:"true" json:"agentApproved"`
}

func (e *Escrow) Approved() bool { return e.ToApproved && e.AgentApproved }

type ConvertRequest struct {
	Owner          string         `serialize:"true" json:"owner"`
	RequestID      uint32         `serialize:"true" json:"requestID"`
	Amount         protocol.Asset `serialize:"true" json:"amount"`
	ConversionDate uint32         `serialize:"true" json:"conversionDate"`
}

type RecoveryRequest struct {
	AccountToRecover  string             `serialize:"true" json:"accountToRecover"`
	NewOwnerAuthority protocol.Authority `serialize:"true" json:"newOwnerAuthority"`
	Expires           uint32             `serialize:"true" json:"expires"`
}

// CustomOpCounter counts an account's custom operations in one block.
type CustomOpCounter struct {
	BlockNum uint32 `serialize:"true"`
	Count    uint32 `serialize:"true"`
}

type flag struct {
	Set bool `serialize:"true"`
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "time"

const (
	// BlockInterval is the length of one production slot.
	BlockInterval = 3 * time.Second
	// BlockIntervalSeconds is BlockInterval in whole seconds.
	BlockIntervalSeconds uint32 = 3

	BlocksPerDay  uint32 = 24 * 60 * 60 / BlockIntervalSeconds
	BlocksPerYear uint64 = 365 * uint64(BlocksPerDay)

	// MaxTimeUntilExpiration bounds how far in the future a transaction may
	// expire relative to head time.
	MaxTimeUntilExpiration uint32 = 60 * 60

	// MaxTransactionSizePercent is the share of the current maximum block
	// size a single transaction may occupy.
	MaxTransactionSizePercent uint32 = 25

	MinBlockSize     uint32 = 128
	DefaultBlockSize uint32 = 64 * 1024
	MaxBlockSizeCap  uint32 = 2 * 1024 * 1024

	// IrreversibleThresholdPercent is the share of scheduled witnesses that
	// must confirm a block before it becomes irreversible.
	IrreversibleThresholdPercent = 75
	// HardforkRequiredPercent is the share of scheduled witnesses that must
	// vote for a hardfork version before it is scheduled.
	HardforkRequiredPercent = 75

	MaxScheduledWitnesses = 21
	MaxSigCheckDepth      = 2
	MaxAccountNameLength  = 16
	MinAccountNameLength  = 3
	MaxMemoSize           = 2048
	MaxURLLength          = 2048
	MaxCustomIDLength     = 32
	MaxCustomDataSize     = 8192

	// CustomOpBlockLimit is the number of custom operations one account may
	// submit per block.
	CustomOpBlockLimit uint32 = 5

	ConversionDelay                 uint32 = 84 * 60 * 60
	DelegationReturnPeriod          uint32 = 5 * 24 * 60 * 60
	RecoveryRequestExpiration       uint32 = 24 * 60 * 60
	OwnerAuthRecoveryPeriod         uint32 = 30 * 24 * 60 * 60
	GovernanceVoteExpirationPeriod  uint32 = 365 * 24 * 60 * 60
	ChainIDTransitionWindow         uint32 = 24 * 60 * 60
	MaxEscrowRatificationWindow     uint32 = 30 * 24 * 60 * 60
	MaxLimitOrderExpiration         uint32 = 28 * 24 * 60 * 60
	MaxWitnessVotesPerAccount       uint16 = 30
	VestingRescaleFactor            int64  = 1000
	ManaRegenerationSeconds         uint32 = 5 * 24 * 60 * 60
	ProducerRewardPercent           int64  = 10
	VestingFundPercent              int64  = 15
	DefaultInflationRateBasisPoints int64  = 500
	PercentBasisPoints              int64  = 10000

	// TreasuryAccountName is the system account name used after the treasury
	// rename hardfork.
	TreasuryAccountName = "treasury"
)

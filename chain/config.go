// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/witnessvm/emission"
	"github.com/ava-labs/witnessvm/evaluators"
	"github.com/ava-labs/witnessvm/mana"
)

//go:generate mockgen -destination=mocks_test.go -package=$GOPACKAGE github.com/ava-labs/witnessvm/mana Meter
//go:generate mockgen -destination=emission_mocks_test.go -package=$GOPACKAGE github.com/ava-labs/witnessvm/emission Engine

// Config holds runtime options. Consensus rules come from the genesis.
type Config struct {
	// FlushInterval compacts the database every FlushInterval irreversible
	// blocks. Zero disables compaction.
	FlushInterval uint32 `json:"flushInterval"`
	// PendingRetryLimit bounds how many pending transactions are reapplied
	// after a block. Zero means no limit.
	PendingRetryLimit int `json:"pendingRetryLimit"`
	// IrreversibleLogInterval logs irreversibility progress every this many
	// blocks.
	IrreversibleLogInterval uint32 `json:"irreversibleLogInterval"`
}

func DefaultConfig() Config {
	return Config{
		FlushInterval:           10000,
		PendingRetryLimit:       10000,
		IrreversibleLogInterval: 1000,
	}
}

// Skip disables checks when applying blocks and transactions that are
// already known to be valid.
type Skip uint32

const (
	SkipWitnessSignature Skip = 1 << iota
	SkipTransactionSignatures
	SkipTransactionDupeCheck
	SkipTaPoSCheck
	SkipMerkleCheck
	SkipWitnessScheduleCheck
	SkipBlockSizeCheck

	// SkipTrustedReplay replays blocks from the local block log.
	SkipTrustedReplay = SkipWitnessSignature |
		SkipTransactionSignatures |
		SkipTaPoSCheck |
		SkipMerkleCheck |
		SkipWitnessScheduleCheck |
		SkipBlockSizeCheck

	SkipNothing Skip = 0
)

func (s Skip) has(flag Skip) bool { return s&flag != 0 }

type options struct {
	logger     log.Logger
	clock      *mockable.Clock
	registerer prometheus.Registerer
	registry   *evaluators.Registry
	meter      mana.Meter
	emission   emission.Engine

	// hardforkVote is the highest hardfork produced blocks vote for
	hardforkVote uint32
}

type Option func(*options)

func WithLogger(l log.Logger) Option { return func(o *options) { o.logger = l } }

func WithClock(c *mockable.Clock) Option { return func(o *options) { o.clock = c } }

func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

func WithRegistry(r *evaluators.Registry) Option { return func(o *options) { o.registry = r } }

func WithMeter(m mana.Meter) Option { return func(o *options) { o.meter = m } }

func WithEmission(e emission.Engine) Option { return func(o *options) { o.emission = e } }

// WithHardforkVote caps the hardfork this node's blocks vote for. By default
// every hardfork the software knows is voted for.
func WithHardforkVote(i uint32) Option { return func(o *options) { o.hardforkVote = i } }

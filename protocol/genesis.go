// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/ids"
)

var errBadGenesis = errors.New("invalid genesis")

type GenesisAccount struct {
	Name string    `json:"name"`
	Key  PublicKey `json:"key"`
	// Balance is the liquid TOKEN balance.
	Balance int64 `json:"balance"`
	// Vesting is an amount of TOKEN converted to vesting shares at genesis.
	Vesting int64 `json:"vesting"`
}

type GenesisWitness struct {
	Name       string    `json:"name"`
	SigningKey PublicKey `json:"signingKey"`
}

// Genesis describes the initial ledger.
type Genesis struct {
	Time uint32 `json:"time"`
	// ChainID signs transactions once HardforkChainID is active and
	// LegacyChainID before it. An empty LegacyChainID means ChainID.
	ChainID       ids.ID `json:"chainID"`
	LegacyChainID ids.ID `json:"legacyChainID"`

	InitialSupply            int64  `json:"initialSupply"`
	TreasuryAccount          string `json:"treasuryAccount"`
	MaximumBlockSize         uint32 `json:"maximumBlockSize"`
	AccountCreationFee       int64  `json:"accountCreationFee"`
	InflationRateBasisPoints int64  `json:"inflationRateBasisPoints"`

	Accounts  []GenesisAccount `json:"accounts"`
	Witnesses []GenesisWitness `json:"witnesses"`

	// InitialHardfork is applied while initializing the chain, running every
	// migration up to it.
	InitialHardfork uint32     `json:"initialHardfork"`
	Hardforks       []Hardfork `json:"hardforks"`
}

func (g *Genesis) LegacyID() ids.ID {
	if g.LegacyChainID == ids.Empty {
		return g.ChainID
	}
	return g.LegacyChainID
}

// Validate checks the genesis is self consistent.
func (g *Genesis) Validate() error {
	if g.ChainID == ids.Empty {
		return fmt.Errorf("%w: missing chain id", errBadGenesis)
	}
	if err := ValidateAccountName(g.TreasuryAccount); err != nil {
		return fmt.Errorf("%w: treasury: %v", errBadGenesis, err)
	}
	if g.MaximumBlockSize < MinBlockSize || g.MaximumBlockSize > MaxBlockSizeCap {
		return fmt.Errorf("%w: maximum block size %d", errBadGenesis, g.MaximumBlockSize)
	}
	if g.AccountCreationFee < 0 || g.InflationRateBasisPoints < 0 {
		return fmt.Errorf("%w: negative fee or inflation", errBadGenesis)
	}
	if g.InitialHardfork >= NumHardforks {
		return fmt.Errorf("%w: initial hardfork %d", errBadGenesis, g.InitialHardfork)
	}
	if err := ValidateHardforks(g.Hardforks); err != nil {
		return fmt.Errorf("%w: %v", errBadGenesis, err)
	}

	names := make(map[string]struct{}, len(g.Accounts))
	var allocated int64
	for _, acct := range g.Accounts {
		if err := ValidateAccountName(acct.Name); err != nil {
			return fmt.Errorf("%w: %v", errBadGenesis, err)
		}
		if _, ok := names[acct.Name]; ok {
			return fmt.Errorf("%w: duplicate account %q", errBadGenesis, acct.Name)
		}
		names[acct.Name] = struct{}{}
		if acct.Balance < 0 || acct.Vesting < 0 {
			return fmt.Errorf("%w: negative allocation for %q", errBadGenesis, acct.Name)
		}
		var err error
		if allocated, err = AddInt64(allocated, acct.Balance); err != nil {
			return fmt.Errorf("%w: %v", errBadGenesis, err)
		}
		if allocated, err = AddInt64(allocated, acct.Vesting); err != nil {
			return fmt.Errorf("%w: %v", errBadGenesis, err)
		}
	}
	if allocated > g.InitialSupply {
		return fmt.Errorf("%w: allocations %d exceed supply %d", errBadGenesis, allocated, g.InitialSupply)
	}
	if len(g.Witnesses) == 0 {
		return fmt.Errorf("%w: no witnesses", errBadGenesis)
	}
	if len(g.Witnesses) > MaxScheduledWitnesses {
		return fmt.Errorf("%w: too many witnesses", errBadGenesis)
	}
	for _, w := range g.Witnesses {
		if _, ok := names[w.Name]; !ok {
			return fmt.Errorf("%w: witness %q has no account", errBadGenesis, w.Name)
		}
		if w.SigningKey.IsZero() {
			return fmt.Errorf("%w: witness %q has no signing key", errBadGenesis, w.Name)
		}
	}
	return nil
}

// ParseGenesis decodes and validates a JSON genesis document. Missing
// hardfork tables default to DefaultHardforks(Time).
func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadGenesis, err)
	}
	if len(g.Hardforks) == 0 {
		g.Hardforks = DefaultHardforks(g.Time)
	}
	if g.MaximumBlockSize == 0 {
		g.MaximumBlockSize = DefaultBlockSize
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func LoadGenesis(path string) (*Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis: %w", err)
	}
	return ParseGenesis(b)
}

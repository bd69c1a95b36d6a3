// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"errors"
	"fmt"
)

// Hardfork indices with a state migration or a rule change. Indices not named
// here only advance the protocol version.
const (
	HardforkGenesis          uint32 = 0
	HardforkVestingRescale   uint32 = 1
	HardforkStrictExpiration uint32 = 5
	HardforkWitnessShutdown  uint32 = 9
	HardforkManaReset        uint32 = 12
	HardforkStrictSupply     uint32 = 20
	HardforkTreasuryRename   uint32 = 21
	HardforkChainID          uint32 = 24
	HardforkGovernanceExpiry uint32 = 25
	HardforkFastConfirm      uint32 = 26

	NumHardforks uint32 = 27
)

var errHardforkTable = errors.New("invalid hardfork table")

// Hardfork is one entry of the hardfork schedule.
type Hardfork struct {
	// Time is the earliest block time the hardfork may activate at.
	Time    uint32  `json:"time"`
	Version Version `json:"version"`
}

// HardforkVersion is the protocol version of hardfork [i].
func HardforkVersion(i uint32) Version { return Version{Major: 0, Minor: uint8(i)} }

// DefaultHardforks returns a table where every hardfork may activate from
// [start] on, once witnesses vote for it.
func DefaultHardforks(start uint32) []Hardfork {
	table := make([]Hardfork, NumHardforks)
	for i := range table {
		table[i] = Hardfork{Time: start, Version: HardforkVersion(uint32(i))}
	}
	return table
}

// ValidateHardforks checks the table is complete and strictly ordered.
func ValidateHardforks(table []Hardfork) error {
	if uint32(len(table)) != NumHardforks {
		return fmt.Errorf("%w: expected %d entries, got %d", errHardforkTable, NumHardforks, len(table))
	}
	for i := 1; i < len(table); i++ {
		if table[i].Time < table[i-1].Time {
			return fmt.Errorf("%w: hardfork %d activates before %d", errHardforkTable, i, i-1)
		}
		if !table[i-1].Version.Less(table[i].Version) {
			return fmt.Errorf("%w: hardfork %d does not raise the version", errHardforkTable, i)
		}
		if table[i].Version.Patch != 0 {
			return fmt.Errorf("%w: hardfork %d has a patch version", errHardforkTable, i)
		}
	}
	return nil
}

// ProtocolVersion is the version this software runs.
var ProtocolVersion = NewVersion(0, uint8(NumHardforks-1), 0)

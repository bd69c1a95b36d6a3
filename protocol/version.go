// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import "fmt"

// Version is a protocol version. Hardfork versions always have a zero patch.
type Version struct {
	Major uint8  `serialize:"true" json:"major"`
	Minor uint8  `serialize:"true" json:"minor"`
	Patch uint16 `serialize:"true" json:"patch"`
}

func NewVersion(major, minor uint8, patch uint16) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

func (v Version) pack() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	a, b := v.pack(), o.pack()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) Less(o Version) bool { return v.pack() < o.pack() }

// HardforkVersion drops the patch component.
func (v Version) HardforkVersion() Version { return Version{Major: v.Major, Minor: v.Minor} }

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

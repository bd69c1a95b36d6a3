// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package forkdb

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/protocol"
)

func child(t *testing.T, parent ids.ID, witness string, ts uint32) *protocol.SignedBlock {
	blk := &protocol.SignedBlock{}
	blk.Previous = parent
	blk.Timestamp = ts
	blk.Witness = witness
	require.NoError(t, blk.Sign(protocol.PrivateKeyFromSeed(witness)))
	return blk
}

func id(t *testing.T, blk *protocol.SignedBlock) ids.ID {
	blkID, err := blk.ID()
	require.NoError(t, err)
	return blkID
}

// tree:
//
//	root - a1 - a2 - a3
//	          \
//	           b2 - b3 - b4
func buildTree(t *testing.T) (*ForkDB, map[string]*protocol.SignedBlock) {
	require := require.New(t)

	f := New(ids.Empty, 0)
	blocks := make(map[string]*protocol.SignedBlock)
	blocks["a1"] = child(t, ids.Empty, "alice", 3)
	blocks["a2"] = child(t, id(t, blocks["a1"]), "alice", 6)
	blocks["a3"] = child(t, id(t, blocks["a2"]), "alice", 9)
	blocks["b2"] = child(t, id(t, blocks["a1"]), "bob", 6)
	blocks["b3"] = child(t, id(t, blocks["b2"]), "bob", 9)
	blocks["b4"] = child(t, id(t, blocks["b3"]), "bob", 12)
	for _, name := range []string{"a1", "a2", "a3", "b2", "b3", "b4"} {
		_, err := f.Push(blocks[name])
		require.NoError(err)
	}
	return f, blocks
}

func TestPushAndHead(t *testing.T) {
	require := require.New(t)
	f, blocks := buildTree(t)

	require.Equal(id(t, blocks["b4"]), f.Head().ID)
	require.Equal(6, f.Len())

	// equal length does not move the head
	a4 := child(t, id(t, blocks["a3"]), "alice", 12)
	head, err := f.Push(a4)
	require.NoError(err)
	require.Equal(id(t, blocks["b4"]), head.ID)

	_, err = f.Push(child(t, ids.GenerateTestID(), "carol", 3))
	require.ErrorIs(err, ErrUnlinkable)
}

func TestFetchBranchFrom(t *testing.T) {
	require := require.New(t)
	f, blocks := buildTree(t)

	first, second, err := f.FetchBranchFrom(id(t, blocks["b4"]), id(t, blocks["a3"]))
	require.NoError(err)
	require.Len(first, 3)
	require.Len(second, 2)
	require.Equal(id(t, blocks["b4"]), first[0].ID)
	require.Equal(id(t, blocks["b2"]), first[2].ID)
	require.Equal(id(t, blocks["a2"]), second[1].ID)
	require.Equal(id(t, blocks["a1"]), first[2].Previous)

	tip, ok := f.Tip(id(t, blocks["a1"]))
	require.True(ok)
	require.Equal(id(t, blocks["b4"]), tip.ID)
	tip, ok = f.Tip(id(t, blocks["a2"]))
	require.True(ok)
	require.Equal(id(t, blocks["a3"]), tip.ID)

	item, err := f.FetchOnBranch(2, id(t, blocks["a3"]))
	require.NoError(err)
	require.Equal(id(t, blocks["a2"]), item.ID)
	_, err = f.FetchOnBranch(5, id(t, blocks["a3"]))
	require.ErrorIs(err, ErrNotOnBranch)
}

func TestRemoveAndPrune(t *testing.T) {
	require := require.New(t)
	f, blocks := buildTree(t)

	f.Remove(id(t, blocks["b2"]))
	require.Equal(3, f.Len())
	require.Equal(id(t, blocks["a3"]), f.Head().ID)

	require.NoError(f.Prune(id(t, blocks["a2"])))
	rootID, rootNum := f.Root()
	require.Equal(id(t, blocks["a2"]), rootID)
	require.Equal(uint32(2), rootNum)
	require.Equal(1, f.Len())

	_, err := f.Push(blocks["b2"])
	require.ErrorIs(err, ErrBelowRoot)
}

func TestApprovals(t *testing.T) {
	require := require.New(t)
	f, blocks := buildTree(t)
	witnesses := []string{"alice", "bob", "carol", "dave"}

	updated, err := f.Approve("alice", id(t, blocks["a3"]))
	require.NoError(err)
	require.True(updated)
	// approvals only move up
	updated, err = f.Approve("alice", id(t, blocks["a2"]))
	require.NoError(err)
	require.False(updated)

	for _, w := range []string{"bob", "carol"} {
		_, err := f.Approve(w, id(t, blocks["b4"]))
		require.NoError(err)
	}
	_, err = f.Approve("dave", id(t, blocks["b3"]))
	require.NoError(err)

	// all four confirm a1, three confirm b3
	require.Equal(id(t, blocks["a1"]), f.BestDescendant(witnesses, 4).ID)
	require.Equal(id(t, blocks["b3"]), f.BestDescendant(witnesses, 3).ID)
	require.Equal(id(t, blocks["b4"]), f.BestDescendant(witnesses, 2).ID)
	require.Nil(f.BestDescendant(witnesses, 5))

	require.NoError(f.Prune(id(t, blocks["b3"])))
	_, _, ok := f.Approval("dave")
	require.False(ok)
	_, num, ok := f.Approval("bob")
	require.True(ok)
	require.Equal(uint32(4), num)
}

func TestRestoreApproval(t *testing.T) {
	require := require.New(t)
	f, blocks := buildTree(t)
	witnesses := []string{"alice", "bob"}

	_, err := f.Approve("alice", id(t, blocks["a2"]))
	require.NoError(err)
	prevID, prevNum, ok := f.Approval("alice")
	require.True(ok)

	_, err = f.Approve("alice", id(t, blocks["a3"]))
	require.NoError(err)
	f.RestoreApproval("alice", prevID, prevNum, ok)
	blkID, num, ok := f.Approval("alice")
	require.True(ok)
	require.Equal(id(t, blocks["a2"]), blkID)
	require.Equal(uint32(2), num)

	// a witness without a previous approval loses the new one
	_, _, had := f.Approval("bob")
	require.False(had)
	_, err = f.Approve("bob", id(t, blocks["b4"]))
	require.NoError(err)
	f.RestoreApproval("bob", ids.Empty, 0, had)
	_, _, ok = f.Approval("bob")
	require.False(ok)
	require.Nil(f.BestDescendant(witnesses, 2))
}

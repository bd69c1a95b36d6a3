// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package forkdb keeps the tree of reversible blocks above the last
// irreversible block.
package forkdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/protocol"
)

var (
	ErrUnlinkable  = errors.New("block does not link to a known block")
	ErrBelowRoot   = errors.New("block is at or below the irreversible block")
	ErrUnknown     = errors.New("block is not in the fork database")
	ErrNotOnBranch = errors.New("no block at that number on the branch")
)

// Item is a block held in the fork database.
type Item struct {
	ID       ids.ID
	Num      uint32
	Previous ids.ID
	Block    *protocol.SignedBlock
}

type approval struct {
	id  ids.ID
	num uint32
}

// ForkDB is not safe for concurrent use.
type ForkDB struct {
	items map[ids.ID]*Item
	// children by parent id
	children map[ids.ID][]ids.ID

	rootID  ids.ID
	rootNum uint32
	head    *Item

	approvals map[string]approval
}

// New returns a fork database rooted at the irreversible block [rootID].
func New(rootID ids.ID, rootNum uint32) *ForkDB {
	f := &ForkDB{approvals: make(map[string]approval)}
	f.Reset(rootID, rootNum)
	return f
}

// Reset drops every block and approval and reroots the tree.
func (f *ForkDB) Reset(rootID ids.ID, rootNum uint32) {
	f.items = make(map[ids.ID]*Item)
	f.children = make(map[ids.ID][]ids.ID)
	f.rootID, f.rootNum = rootID, rootNum
	f.head = nil
	for w, a := range f.approvals {
		if a.num <= rootNum {
			delete(f.approvals, w)
		}
	}
}

func (f *ForkDB) Root() (ids.ID, uint32) { return f.rootID, f.rootNum }

// Head is the tip of the longest branch, or nil if only the root is known.
func (f *ForkDB) Head() *Item { return f.head }

func (f *ForkDB) Len() int { return len(f.items) }

// Push links [blk] into the tree and returns the new head. The head moves to
// [blk] only if it makes a strictly longer branch.
func (f *ForkDB) Push(blk *protocol.SignedBlock) (*Item, error) {
	blkID, err := blk.ID()
	if err != nil {
		return nil, err
	}
	num := blk.Num()
	if num <= f.rootNum {
		return nil, fmt.Errorf("%w: %d <= %d", ErrBelowRoot, num, f.rootNum)
	}
	if existing, ok := f.items[blkID]; ok {
		return f.headOr(existing), nil
	}
	if _, ok := f.items[blk.Previous]; !ok && blk.Previous != f.rootID {
		return nil, fmt.Errorf("%w: %s builds on %s", ErrUnlinkable, blkID, blk.Previous)
	}

	item := &Item{
		ID:       blkID,
		Num:      num,
		Previous: blk.Previous,
		Block:    blk,
	}
	f.items[blkID] = item
	f.children[blk.Previous] = append(f.children[blk.Previous], blkID)
	if f.head == nil || item.Num > f.head.Num {
		f.head = item
	}
	return f.head, nil
}

func (f *ForkDB) headOr(item *Item) *Item {
	if f.head == nil {
		return item
	}
	return f.head
}

// Fetch returns the block with [blkID].
func (f *ForkDB) Fetch(blkID ids.ID) (*Item, bool) {
	item, ok := f.items[blkID]
	return item, ok
}

// FetchOnBranch walks back from [tip] to the block numbered [num].
func (f *ForkDB) FetchOnBranch(num uint32, tip ids.ID) (*Item, error) {
	item, ok := f.items[tip]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, tip)
	}
	for item.Num > num {
		if item, ok = f.items[item.Previous]; !ok {
			break
		}
	}
	if !ok || item.Num != num {
		return nil, fmt.Errorf("%w: %d below %s", ErrNotOnBranch, num, tip)
	}
	return item, nil
}

// FetchBranchFrom returns the two branches from [first] and [second] down to,
// but excluding, their common ancestor. Each branch is ordered tip first.
func (f *ForkDB) FetchBranchFrom(first, second ids.ID) ([]*Item, []*Item, error) {
	var firstBranch, secondBranch []*Item
	a, err := f.fetchOrRoot(first)
	if err != nil {
		return nil, nil, err
	}
	b, err := f.fetchOrRoot(second)
	if err != nil {
		return nil, nil, err
	}
	for a != nil && (b == nil || a.Num > b.Num) {
		firstBranch = append(firstBranch, a)
		if a, err = f.fetchOrRoot(a.Previous); err != nil {
			return nil, nil, err
		}
	}
	for b != nil && (a == nil || b.Num > a.Num) {
		secondBranch = append(secondBranch, b)
		if b, err = f.fetchOrRoot(b.Previous); err != nil {
			return nil, nil, err
		}
	}
	for a != nil && b != nil && a.ID != b.ID {
		firstBranch = append(firstBranch, a)
		secondBranch = append(secondBranch, b)
		if a, err = f.fetchOrRoot(a.Previous); err != nil {
			return nil, nil, err
		}
		if b, err = f.fetchOrRoot(b.Previous); err != nil {
			return nil, nil, err
		}
	}
	if (a == nil) != (b == nil) {
		return nil, nil, fmt.Errorf("%w: %s and %s share no ancestor", ErrUnlinkable, first, second)
	}
	return firstBranch, secondBranch, nil
}

// fetchOrRoot returns nil for the root.
func (f *ForkDB) fetchOrRoot(blkID ids.ID) (*Item, error) {
	if blkID == f.rootID {
		return nil, nil
	}
	item, ok := f.items[blkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, blkID)
	}
	return item, nil
}

// Remove drops [blkID] and all its descendants. If the head was removed the
// longest remaining branch becomes the head.
func (f *ForkDB) Remove(blkID ids.ID) {
	item, ok := f.items[blkID]
	if !ok {
		return
	}
	siblings := f.children[item.Previous]
	for i, id := range siblings {
		if id == blkID {
			f.children[item.Previous] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	if len(f.children[item.Previous]) == 0 {
		delete(f.children, item.Previous)
	}

	queue := []ids.ID{blkID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queue = append(queue, f.children[id]...)
		delete(f.children, id)
		delete(f.items, id)
	}
	if f.head != nil {
		if _, ok := f.items[f.head.ID]; !ok {
			f.head = f.longest()
		}
	}
}

// longest picks the highest block, ties broken by the smaller id.
func (f *ForkDB) longest() *Item {
	var best *Item
	for _, item := range f.items {
		if best == nil || item.Num > best.Num ||
			(item.Num == best.Num && bytes.Compare(item.ID[:], best.ID[:]) < 0) {
			best = item
		}
	}
	return best
}

// Tip returns the highest descendant of [blkID], or the block itself.
func (f *ForkDB) Tip(blkID ids.ID) (*Item, bool) {
	best, ok := f.items[blkID]
	if !ok {
		return nil, false
	}
	queue := append([]ids.ID(nil), f.children[blkID]...)
	for len(queue) > 0 {
		item := f.items[queue[0]]
		queue = append(queue[1:], f.children[item.ID]...)
		if item.Num > best.Num ||
			(item.Num == best.Num && bytes.Compare(item.ID[:], best.ID[:]) < 0) {
			best = item
		}
	}
	return best, true
}

// SetHead moves the head to a known block.
func (f *ForkDB) SetHead(blkID ids.ID) error {
	item, ok := f.items[blkID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, blkID)
	}
	f.head = item
	return nil
}

// Prune makes [blkID] the new root. Blocks that do not descend from it are
// dropped.
func (f *ForkDB) Prune(blkID ids.ID) error {
	newRoot, ok := f.items[blkID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, blkID)
	}
	keep := make(map[ids.ID]*Item)
	keepChildren := make(map[ids.ID][]ids.ID)
	queue := []ids.ID{blkID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if kids := f.children[id]; len(kids) > 0 {
			keepChildren[id] = kids
			queue = append(queue, kids...)
		}
		if id != blkID {
			keep[id] = f.items[id]
		}
	}
	f.items, f.children = keep, keepChildren
	f.rootID, f.rootNum = newRoot.ID, newRoot.Num
	if f.head != nil {
		if _, ok := f.items[f.head.ID]; !ok {
			f.head = f.longest()
		}
	}
	for w, a := range f.approvals {
		if a.num <= f.rootNum {
			delete(f.approvals, w)
		}
	}
	return nil
}

// Approve records that [witness] confirms [blkID] and its ancestors. Only
// approvals of a higher block than the witness's previous one are kept.
func (f *ForkDB) Approve(witness string, blkID ids.ID) (bool, error) {
	item, ok := f.items[blkID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknown, blkID)
	}
	if prev, ok := f.approvals[witness]; ok && prev.num >= item.Num {
		return false, nil
	}
	f.approvals[witness] = approval{id: blkID, num: item.Num}
	return true, nil
}

// Approval returns the block [witness] last approved.
func (f *ForkDB) Approval(witness string) (ids.ID, uint32, bool) {
	a, ok := f.approvals[witness]
	return a.id, a.num, ok
}

// RestoreApproval puts back an approval read with Approval, dropping any
// approval recorded since.
func (f *ForkDB) RestoreApproval(witness string, blkID ids.ID, num uint32, ok bool) {
	if !ok {
		delete(f.approvals, witness)
		return
	}
	f.approvals[witness] = approval{id: blkID, num: num}
}

// BestDescendant returns the highest block approved, directly or through a
// descendant, by at least [required] of [witnesses]. It returns nil if no
// block above the root is.
func (f *ForkDB) BestDescendant(witnesses []string, required int) *Item {
	if required <= 0 {
		return nil
	}
	counts := make(map[ids.ID]int)
	for _, w := range witnesses {
		a, ok := f.approvals[w]
		if !ok {
			continue
		}
		for item, ok := f.items[a.id]; ok; item, ok = f.items[item.Previous] {
			counts[item.ID]++
		}
	}
	var best *Item
	for id, n := range counts {
		if n < required {
			continue
		}
		item := f.items[id]
		if best == nil || item.Num > best.Num ||
			(item.Num == best.Num && bytes.Compare(item.ID[:], best.ID[:]) < 0) {
			best = item
		}
	}
	return best
}

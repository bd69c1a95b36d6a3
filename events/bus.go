// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/protocol"
)

// Kind is the type of a lifecycle notification.
type Kind uint8

const (
	PreApplyOperation Kind = iota
	PostApplyOperation
	PreApplyTransaction
	PostApplyTransaction
	PreApplyBlock
	PostApplyBlock
	FailApplyBlock
	IrreversibleBlock
	SwitchFork
	HardforkApplied

	numKinds
)

var kindNames = [numKinds]string{
	"pre_apply_operation",
	"post_apply_operation",
	"pre_apply_transaction",
	"post_apply_transaction",
	"pre_apply_block",
	"post_apply_block",
	"fail_apply_block",
	"irreversible_block",
	"switch_fork",
	"hardfork_applied",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Observational kinds are published after the fact. Handler errors are logged
// and never reach the publisher.
func (k Kind) Observational() bool {
	return k == FailApplyBlock || k == IrreversibleBlock || k == SwitchFork
}

// Event is the payload handed to subscribers. Handlers must treat it and
// everything it points to as read only.
type Event struct {
	Kind Kind

	BlockNum  uint32
	BlockTime uint32
	BlockID   ids.ID
	// TxIndex and OpIndex locate the operation inside the block. TxIndex is
	// -1 for operations produced outside transactions, such as end of block
	// virtual operations.
	TxIndex int
	OpIndex int
	TxID    ids.ID

	Operation   protocol.Operation
	Virtual     bool
	Transaction *protocol.SignedTransaction
	Block       *protocol.SignedBlock

	// Err is the failure for FailApplyBlock.
	Err error
	// Hardfork is the index applied for HardforkApplied.
	Hardfork uint32
	// NewHead is the head after a SwitchFork, BlockID the head before it.
	NewHead ids.ID
}

type Handler func(*Event) error

type subscription struct {
	id       uint64
	priority int
	handler  Handler
}

// Bus dispatches events synchronously to subscribers ordered by ascending
// priority, ties resolved by subscription order. Handlers run on the
// publisher's goroutine, inside its write section, and must not call back
// into block or transaction application.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   [numKinds][]subscription
	log    log.Logger
}

func NewBus(logger log.Logger) *Bus {
	if logger == nil {
		logger = log.New("module", "events")
	}
	return &Bus{log: logger}
}

// Handle cancels one subscription.
type Handle struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Subscribe registers [h] for [kind].
func (b *Bus) Subscribe(kind Kind, priority int, h Handler) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	// publishers iterate the old slice without the lock
	subs := make([]subscription, 0, len(b.subs[kind])+1)
	subs = append(subs, b.subs[kind]...)
	subs = append(subs, subscription{id: b.nextID, priority: priority, handler: h})
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].priority < subs[j].priority })
	b.subs[kind] = subs
	return &Handle{bus: b, kind: kind, id: b.nextID}
}

// Unsubscribe is idempotent.
func (h *Handle) Unsubscribe() {
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[h.kind]
	for i, s := range subs {
		if s.id == h.id {
			b.subs[h.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers [ev]. For non observational kinds the first handler error
// stops delivery and is returned.
func (b *Bus) Publish(ev *Event) error {
	b.mu.Lock()
	subs := b.subs[ev.Kind]
	b.mu.Unlock()

	for _, s := range subs {
		err := s.handler(ev)
		if err == nil {
			continue
		}
		if ev.Kind.Observational() {
			b.log.Warn("notification handler failed", "kind", ev.Kind, "num", ev.BlockNum, "err", err)
			continue
		}
		return fmt.Errorf("%s handler failed: %w", ev.Kind, err)
	}
	return nil
}

// Count returns the number of subscribers of [kind].
func (b *Bus) Count(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}

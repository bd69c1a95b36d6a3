// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriorityOrder(t *testing.T) {
	require := require.New(t)

	bus := NewBus(nil)
	var order []string
	record := func(name string) Handler {
		return func(*Event) error {
			order = append(order, name)
			return nil
		}
	}
	bus.Subscribe(PostApplyBlock, 10, record("late"))
	bus.Subscribe(PostApplyBlock, 0, record("first"))
	bus.Subscribe(PostApplyBlock, 0, record("second"))
	bus.Subscribe(PreApplyBlock, 0, record("other kind"))

	require.NoError(bus.Publish(&Event{Kind: PostApplyBlock}))
	require.Equal([]string{"first", "second", "late"}, order)
}

func TestErrorsStopApplyKinds(t *testing.T) {
	require := require.New(t)

	bus := NewBus(nil)
	errBoom := errors.New("boom")
	calls := 0
	bus.Subscribe(PreApplyOperation, 0, func(*Event) error { return errBoom })
	bus.Subscribe(PreApplyOperation, 1, func(*Event) error { calls++; return nil })
	bus.Subscribe(IrreversibleBlock, 0, func(*Event) error { return errBoom })
	bus.Subscribe(IrreversibleBlock, 1, func(*Event) error { calls++; return nil })

	require.ErrorIs(bus.Publish(&Event{Kind: PreApplyOperation}), errBoom)
	require.Zero(calls)

	// observational kinds keep delivering and never fail the publisher
	require.NoError(bus.Publish(&Event{Kind: IrreversibleBlock}))
	require.Equal(1, calls)
}

func TestUnsubscribe(t *testing.T) {
	require := require.New(t)

	bus := NewBus(nil)
	calls := 0
	var h *Handle
	h = bus.Subscribe(SwitchFork, 0, func(*Event) error {
		calls++
		h.Unsubscribe()
		return nil
	})
	bus.Subscribe(SwitchFork, 1, func(*Event) error { calls++; return nil })

	require.NoError(bus.Publish(&Event{Kind: SwitchFork}))
	require.Equal(2, calls)
	require.Equal(1, bus.Count(SwitchFork))

	h.Unsubscribe()
	require.NoError(bus.Publish(&Event{Kind: SwitchFork}))
	require.Equal(3, calls)
}

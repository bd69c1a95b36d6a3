// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var testLegacyChainID = ids.ID{'l', 'e', 'g', 'a', 'c', 'y'}

func TestCheckAuthority(t *testing.T) {
	c := newTestChain(t, testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...))
	a, _ := beginApply(t, c)
	l := a.ledger

	// alice's active authority is bob's, which is charlie's, which is
	// charlie's key or alpha's authority
	delegate := func(name string, auth protocol.Authority) {
		acct, err := l.Account(name)
		require.NoError(t, err)
		acct.Active = auth
		require.NoError(t, l.PutAccount(acct))
	}
	delegate("alice", protocol.Authority{WeightThreshold: 1, AccountAuths: []protocol.AccountAuth{{Name: "bob", Weight: 1}}})
	delegate("bob", protocol.Authority{WeightThreshold: 1, AccountAuths: []protocol.AccountAuth{{Name: "charlie", Weight: 1}}})
	delegate("charlie", protocol.Authority{
		WeightThreshold: 1,
		AccountAuths:    []protocol.AccountAuth{{Name: "alpha", Weight: 1}},
		KeyAuths:        []protocol.KeyAuth{{Key: protocol.PublicKeyOf(testKey("charlie")), Weight: 1}},
	})

	keys := func(names ...string) []protocol.PublicKey {
		out := make([]protocol.PublicKey, len(names))
		for i, name := range names {
			out[i] = protocol.PublicKeyOf(testKey(name))
		}
		return out
	}
	tests := []struct {
		name        string
		keys        []protocol.PublicKey
		expectedErr error
	}{
		{
			name: "owner key satisfies active",
			keys: keys("alice"),
		},
		{
			name: "key two accounts deep",
			keys: keys("charlie"),
		},
		{
			name:        "key three accounts deep",
			keys:        keys("alpha"),
			expectedErr: ErrMissingAuthority,
		},
		{
			name:        "no signature",
			expectedErr: ErrMissingAuthority,
		},
		{
			name:        "irrelevant signature",
			keys:        keys("alice", "bob"),
			expectedErr: ErrIrrelevantSignature,
		},
		{
			name:        "duplicate signature",
			keys:        keys("alice", "alice"),
			expectedErr: ErrDuplicateSignature,
		},
	}
	required := protocol.RequiredAuthorities{Active: []string{"alice"}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := checkAuthority(l, &required, test.keys)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestPushTransactionSignatures(t *testing.T) {
	tests := []struct {
		name        string
		signers     []string
		expectedErr error
	}{
		{
			name:    "single signature",
			signers: []string{"alice"},
		},
		{
			name:        "duplicate signature",
			signers:     []string{"alice", "alice"},
			expectedErr: ErrDuplicateSignature,
		},
		{
			name:        "irrelevant signature",
			signers:     []string{"alice", "bob"},
			expectedErr: ErrIrrelevantSignature,
		},
		{
			name:        "wrong signer",
			signers:     []string{"bob"},
			expectedErr: ErrMissingAuthority,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			c := newTestChain(t,
				testGenesis(protocol.HardforkGovernanceExpiry, testWitnesses...),
				WithHardforkVote(protocol.HardforkGovernanceExpiry),
			)
			tx := transfer(t, c, "alice", "bob", 1)
			tx.Signatures = nil
			for _, signer := range test.signers {
				require.NoError(tx.Sign(testKey(signer), testChainID))
			}
			require.ErrorIs(c.PushTransaction(tx), test.expectedErr)
		})
	}
}

func TestSigningChainIDs(t *testing.T) {
	const switchTime uint32 = 1_000
	tests := []struct {
		name     string
		hardfork uint32
		now      uint32
		legacy   ids.ID
		expected []ids.ID
	}{
		{
			name:     "legacy id before the switch",
			hardfork: protocol.HardforkChainID - 1,
			now:      switchTime,
			legacy:   testLegacyChainID,
			expected: []ids.ID{testLegacyChainID},
		},
		{
			name:     "both ids inside the window",
			hardfork: protocol.HardforkChainID,
			now:      switchTime + protocol.ChainIDTransitionWindow - 1,
			legacy:   testLegacyChainID,
			expected: []ids.ID{testChainID, testLegacyChainID},
		},
		{
			name:     "new id once the window closes",
			hardfork: protocol.HardforkChainID,
			now:      switchTime + protocol.ChainIDTransitionWindow,
			legacy:   testLegacyChainID,
			expected: []ids.ID{testChainID},
		},
		{
			name:     "unchanged id",
			hardfork: protocol.HardforkChainID,
			now:      switchTime,
			legacy:   testChainID,
			expected: []ids.ID{testChainID},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := &ledger.GlobalProperties{
				ChainID:           testChainID,
				LegacyChainID:     test.legacy,
				ChainIDSwitchTime: switchTime,
			}
			a := &applyContext{hardfork: test.hardfork, now: test.now}
			require.Equal(t, test.expected, signingChainIDs(a, g))
		})
	}
}

func TestChainIDTransition(t *testing.T) {
	tests := []struct {
		name        string
		hardfork    uint32
		chainID     ids.ID
		expectedErr error
	}{
		{
			name:     "legacy id before the switch",
			hardfork: protocol.HardforkChainID - 1,
			chainID:  testLegacyChainID,
		},
		{
			name:        "new id before the switch",
			hardfork:    protocol.HardforkChainID - 1,
			chainID:     testChainID,
			expectedErr: ErrMissingAuthority,
		},
		{
			name:     "legacy id inside the window",
			hardfork: protocol.HardforkChainID,
			chainID:  testLegacyChainID,
		},
		{
			name:     "new id after the switch",
			hardfork: protocol.HardforkChainID,
			chainID:  testChainID,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			gen := testGenesis(test.hardfork, testWitnesses...)
			gen.LegacyChainID = testLegacyChainID
			c := newTestChain(t, gen)

			tx := transfer(t, c, "alice", "bob", 1)
			tx.Signatures = nil
			require.NoError(tx.Sign(testKey("alice"), test.chainID))
			require.ErrorIs(c.PushTransaction(tx), test.expectedErr)
		})
	}
}

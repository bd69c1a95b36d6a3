// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

type role uint8

const (
	roleOwner role = iota
	roleActive
	rolePosting
)

func (r role) String() string {
	switch r {
	case roleOwner:
		return "owner"
	case roleActive:
		return "active"
	default:
		return "posting"
	}
}

// signingChainIDs lists the chain ids a transaction may be signed under.
// Both ids are accepted for a while after the chain id hardfork.
func signingChainIDs(a *applyContext, g *ledger.GlobalProperties) []ids.ID {
	if !a.hasHardfork(protocol.HardforkChainID) {
		return []ids.ID{g.LegacyChainID}
	}
	out := []ids.ID{g.ChainID}
	if g.LegacyChainID != g.ChainID && a.now < g.ChainIDSwitchTime+protocol.ChainIDTransitionWindow {
		out = append(out, g.LegacyChainID)
	}
	return out
}

// verifyAuthority checks the signatures of [tx] satisfy every authority its
// operations require, without any unused signature.
func (c *Chain) verifyAuthority(a *applyContext, g *ledger.GlobalProperties, tx *protocol.SignedTransaction) error {
	required := tx.RequiredAuthorities()
	var lastErr error
	for _, chainID := range signingChainIDs(a, g) {
		keys, err := tx.SignatureKeys(chainID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
		}
		if lastErr = checkAuthority(a.ledger, &required, keys); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// checkAuthority verifies [keys] against [required].
func checkAuthority(l *ledger.Ledger, required *protocol.RequiredAuthorities, keys []protocol.PublicKey) error {
	s := &signer{
		ledger:   l,
		provided: make(map[protocol.PublicKey]struct{}, len(keys)),
		used:     make(map[protocol.PublicKey]struct{}, len(keys)),
	}
	for _, k := range keys {
		if _, ok := s.provided[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSignature, k)
		}
		s.provided[k] = struct{}{}
	}

	for _, name := range required.Owner {
		if err := s.require(name, roleOwner); err != nil {
			return err
		}
	}
	for _, name := range required.Active {
		if err := s.require(name, roleActive); err != nil {
			return err
		}
	}
	for _, name := range required.Posting {
		if err := s.require(name, rolePosting); err != nil {
			return err
		}
	}
	for i := range required.Other {
		ok, err := s.satisfies(&required.Other[i], roleActive, 0, s.used)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: authority %d", ErrMissingAuthority, i)
		}
	}

	for k := range s.provided {
		if _, ok := s.used[k]; !ok {
			return fmt.Errorf("%w: %s", ErrIrrelevantSignature, k)
		}
	}
	return nil
}

type signer struct {
	ledger   *ledger.Ledger
	provided map[protocol.PublicKey]struct{}
	used     map[protocol.PublicKey]struct{}
}

// require checks [name]'s authority for [r]. A stronger authority satisfies
// a weaker role.
func (s *signer) require(name string, r role) error {
	acct, err := s.ledger.Account(name)
	if err != nil {
		return err
	}
	auths := []*protocol.Authority{&acct.Owner}
	switch r {
	case roleActive:
		auths = []*protocol.Authority{&acct.Active, &acct.Owner}
	case rolePosting:
		auths = []*protocol.Authority{&acct.Posting, &acct.Active, &acct.Owner}
	}
	for _, auth := range auths {
		ok, err := s.satisfies(auth, r, 0, s.used)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s authority of %q", ErrMissingAuthority, r, name)
}

// satisfies reports whether the provided keys meet [auth]'s threshold.
// Account authorities are followed up to protocol.MaxSigCheckDepth levels.
// Keys that contributed are recorded in [used] only on success.
func (s *signer) satisfies(auth *protocol.Authority, r role, depth int, used map[protocol.PublicKey]struct{}) (bool, error) {
	var (
		total   uint64
		touched = make(map[protocol.PublicKey]struct{})
	)
	done := func() bool {
		if total < uint64(auth.WeightThreshold) {
			return false
		}
		for k := range touched {
			used[k] = struct{}{}
		}
		return true
	}
	if auth.WeightThreshold == 0 {
		return false, nil
	}

	for _, ka := range auth.KeyAuths {
		if _, ok := s.provided[ka.Key]; !ok {
			continue
		}
		touched[ka.Key] = struct{}{}
		total += uint64(ka.Weight)
		if done() {
			return true, nil
		}
	}
	if depth >= protocol.MaxSigCheckDepth {
		return false, nil
	}
	for _, aa := range auth.AccountAuths {
		acct, err := s.ledger.Account(aa.Name)
		if errors.Is(err, ledger.ErrUnknownAccount) {
			continue
		}
		if err != nil {
			return false, err
		}
		nested := &acct.Active
		if r == rolePosting {
			nested = &acct.Posting
		}
		ok, err := s.satisfies(nested, r, depth+1, touched)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		total += uint64(aa.Weight)
		if done() {
			return true, nil
		}
	}
	return false, nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"errors"
	"fmt"
	"sort"
)

var (
	errImpossibleAuthority = errors.New("authority threshold can never be met")
	errDuplicateAuthority  = errors.New("authority lists a key or account twice")
	errInvalidAccountName  = errors.New("invalid account name")
)

type AccountAuth struct {
	Name   string `serialize:"true" json:"name"`
	Weight uint16 `serialize:"true" json:"weight"`
}

type KeyAuth struct {
	Key    PublicKey `serialize:"true" json:"key"`
	Weight uint16    `serialize:"true" json:"weight"`
}

// Authority is a weighted multi-signature requirement. It is satisfied when
// the weights of the present keys and satisfied account authorities reach
// WeightThreshold.
type Authority struct {
	WeightThreshold uint32        `serialize:"true" json:"weightThreshold"`
	AccountAuths    []AccountAuth `serialize:"true" json:"accountAuths"`
	KeyAuths        []KeyAuth     `serialize:"true" json:"keyAuths"`
}

// SingleKeyAuthority returns an authority satisfied by [key] alone.
func SingleKeyAuthority(key PublicKey) Authority {
	return Authority{WeightThreshold: 1, KeyAuths: []KeyAuth{{Key: key, Weight: 1}}}
}

func (a *Authority) IsImpossible() bool {
	var total uint64
	for _, acct := range a.AccountAuths {
		total += uint64(acct.Weight)
	}
	for _, key := range a.KeyAuths {
		total += uint64(key.Weight)
	}
	return total < uint64(a.WeightThreshold)
}

func (a *Authority) Validate() error {
	names := make(map[string]struct{}, len(a.AccountAuths))
	for _, acct := range a.AccountAuths {
		if err := ValidateAccountName(acct.Name); err != nil {
			return err
		}
		if _, ok := names[acct.Name]; ok {
			return errDuplicateAuthority
		}
		names[acct.Name] = struct{}{}
	}
	keys := make(map[PublicKey]struct{}, len(a.KeyAuths))
	for _, key := range a.KeyAuths {
		if _, ok := keys[key.Key]; ok {
			return errDuplicateAuthority
		}
		keys[key.Key] = struct{}{}
	}
	return nil
}

func (a *Authority) Equal(o *Authority) bool {
	if a.WeightThreshold != o.WeightThreshold ||
		len(a.AccountAuths) != len(o.AccountAuths) ||
		len(a.KeyAuths) != len(o.KeyAuths) {
		return false
	}
	for i := range a.AccountAuths {
		if a.AccountAuths[i] != o.AccountAuths[i] {
			return false
		}
	}
	for i := range a.KeyAuths {
		if a.KeyAuths[i] != o.KeyAuths[i] {
			return false
		}
	}
	return true
}

// RequiredAuthorities collects the signers an operation set needs.
type RequiredAuthorities struct {
	Active  []string
	Owner   []string
	Posting []string
	Other   []Authority
}

// Normalize sorts and deduplicates the account lists so verification visits
// them in a deterministic order.
func (r *RequiredAuthorities) Normalize() {
	r.Active = sortedUnique(r.Active)
	r.Owner = sortedUnique(r.Owner)
	r.Posting = sortedUnique(r.Posting)
}

func (r *RequiredAuthorities) IsEmpty() bool {
	return len(r.Active) == 0 && len(r.Owner) == 0 && len(r.Posting) == 0 && len(r.Other) == 0
}

func sortedUnique(names []string) []string {
	if len(names) < 2 {
		return names
	}
	sort.Strings(names)
	out := names[:1]
	for _, n := range names[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

// ValidateAccountName enforces dot-separated segments of at least three
// characters that start with a letter, end with a letter or digit, and hold
// only lowercase letters, digits and single dashes.
func ValidateAccountName(name string) error {
	if len(name) < MinAccountNameLength || len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: %q has bad length", errInvalidAccountName, name)
	}
	start := 0
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}
		if err := validateNameSegment(name[start:i]); err != nil {
			return fmt.Errorf("%w: %q: %v", errInvalidAccountName, name, err)
		}
		start = i + 1
	}
	return nil
}

func validateNameSegment(seg string) error {
	if len(seg) < MinAccountNameLength {
		return errors.New("segment too short")
	}
	if seg[0] < 'a' || seg[0] > 'z' {
		return errors.New("segment must start with a letter")
	}
	last := seg[len(seg)-1]
	if !(last >= 'a' && last <= 'z') && !(last >= '0' && last <= '9') {
		return errors.New("segment must end with a letter or digit")
	}
	for i := 1; i < len(seg)-1; i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if seg[i-1] == '-' {
				return errors.New("segment has consecutive dashes")
			}
		default:
			return fmt.Errorf("segment has invalid character %q", c)
		}
	}
	return nil
}

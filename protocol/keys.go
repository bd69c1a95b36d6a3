// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

const (
	PublicKeyLen = 33
	SignatureLen = 65
)

var (
	errInvalidPublicKey = errors.New("invalid public key")
	errInvalidSignature = errors.New("invalid signature")
)

// PublicKey is a compressed secp256k1 public key.
type PublicKey [PublicKeyLen]byte

// Signature is a compact recoverable secp256k1 signature.
type Signature [SignatureLen]byte

func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = PublicKey{}
		return nil
	}
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidPublicKey, err)
	}
	if _, err := btcec.ParsePubKey(b); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPublicKey, err)
	}
	copy(k[:], b)
	return nil
}

func (s Signature) String() string { return hex.EncodeToString(s[:]) }

func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Signature) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != SignatureLen {
		return errInvalidSignature
	}
	copy(s[:], b)
	return nil
}

// PublicKeyOf returns the compressed public key of [priv].
func PublicKeyOf(priv *btcec.PrivateKey) PublicKey {
	var k PublicKey
	copy(k[:], priv.PubKey().SerializeCompressed())
	return k
}

// PrivateKeyFromSeed derives a deterministic key from [seed]. It is used for
// genesis and test keys only.
func PrivateKeyFromSeed(seed string) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(hashing.ComputeHash256([]byte(seed)))
	return priv
}

// Sign produces a compact recoverable signature over [digest].
func Sign(priv *btcec.PrivateKey, digest ids.ID) (Signature, error) {
	var sig Signature
	raw, err := ecdsa.SignCompact(priv, digest[:], true)
	if err != nil {
		return sig, fmt.Errorf("failed to sign: %w", err)
	}
	copy(sig[:], raw)
	return sig, nil
}

// RecoverPublicKey returns the key that produced [sig] over [digest].
func RecoverPublicKey(sig Signature, digest ids.ID) (PublicKey, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", errInvalidSignature, err)
	}
	var k PublicKey
	copy(k[:], pub.SerializeCompressed())
	return k, nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	errEmptyTransaction = errors.New("transaction has no operations")
	errUnknownOperation = errors.New("unknown operation type")
)

// Transaction is an ordered list of operations bound to a recent block.
type Transaction struct {
	RefBlockNum    uint16      `serialize:"true"`
	RefBlockPrefix uint32      `serialize:"true"`
	Expiration     uint32      `serialize:"true"`
	Operations     []Operation `serialize:"true"`
}

type SignedTransaction struct {
	Transaction `serialize:"true"`
	Signatures  []Signature `serialize:"true"`
}

// SetReferenceBlock binds the transaction to [blkID].
func (tx *Transaction) SetReferenceBlock(blkID ids.ID) {
	tx.RefBlockNum = uint16(NumFromID(blkID))
	tx.RefBlockPrefix = RefPrefix(blkID)
}

func (tx *Transaction) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, tx)
}

// ID is the hash of the unsigned transaction.
func (tx *Transaction) ID() (ids.ID, error) {
	b, err := tx.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(b), nil
}

// SigDigest is the message signed for [chainID].
func (tx *Transaction) SigDigest(chainID ids.ID) (ids.ID, error) {
	b, err := tx.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(append(chainID[:], b...)), nil
}

// Validate checks every operation statelessly. Virtual operations and fast
// confirmations are rejected.
func (tx *Transaction) Validate() error {
	if len(tx.Operations) == 0 {
		return errEmptyTransaction
	}
	for i, op := range tx.Operations {
		if op == nil {
			return fmt.Errorf("operation %d: %w", i, errUnknownOperation)
		}
		if op.Type() == WitnessBlockApproveOp {
			return fmt.Errorf("operation %d: %w: fast confirmations cannot be included in transactions", i, ErrInvalidOperation)
		}
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// RequiredAuthorities collects the authorities of every operation.
func (tx *Transaction) RequiredAuthorities() RequiredAuthorities {
	var r RequiredAuthorities
	for _, op := range tx.Operations {
		op.Authorities(&r)
	}
	r.Normalize()
	return r
}

func (tx *SignedTransaction) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, tx)
}

// Sign appends a signature by [priv] under [chainID].
func (tx *SignedTransaction) Sign(priv *btcec.PrivateKey, chainID ids.ID) error {
	digest, err := tx.SigDigest(chainID)
	if err != nil {
		return err
	}
	sig, err := Sign(priv, digest)
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// SignatureKeys recovers the public key behind each signature.
func (tx *SignedTransaction) SignatureKeys(chainID ids.ID) ([]PublicKey, error) {
	digest, err := tx.SigDigest(chainID)
	if err != nil {
		return nil, err
	}
	keys := make([]PublicKey, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		if keys[i], err = RecoverPublicKey(sig, digest); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// ParseTransaction decodes a signed transaction. Unknown operation kinds fail
// here.
func ParseTransaction(b []byte) (*SignedTransaction, error) {
	tx := &SignedTransaction{}
	if _, err := Codec.Unmarshal(b, tx); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return tx, nil
}

// NumFromID extracts the block number stored in the first bytes of a block id.
func NumFromID(id ids.ID) uint32 { return binary.BigEndian.Uint32(id[:4]) }

// RefPrefix is the TaPoS prefix of a block id.
func RefPrefix(id ids.ID) uint32 { return binary.BigEndian.Uint32(id[4:8]) }

type jsonOperation struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonTransaction struct {
	RefBlockNum    uint16          `json:"refBlockNum"`
	RefBlockPrefix uint32          `json:"refBlockPrefix"`
	Expiration     uint32          `json:"expiration"`
	Operations     []jsonOperation `json:"operations"`
	Signatures     []Signature     `json:"signatures,omitempty"`
}

func newOperation(name string) (Operation, error) {
	for _, op := range operationPrototypes() {
		if op.Type().String() == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", errUnknownOperation, name)
}

func (tx *Transaction) toJSON(sigs []Signature) ([]byte, error) {
	out := jsonTransaction{
		RefBlockNum:    tx.RefBlockNum,
		RefBlockPrefix: tx.RefBlockPrefix,
		Expiration:     tx.Expiration,
		Operations:     make([]jsonOperation, len(tx.Operations)),
		Signatures:     sigs,
	}
	for i, op := range tx.Operations {
		value, err := json.Marshal(op)
		if err != nil {
			return nil, err
		}
		out.Operations[i] = jsonOperation{Type: op.Type().String(), Value: value}
	}
	return json.Marshal(out)
}

func (tx *Transaction) fromJSON(b []byte) ([]Signature, error) {
	var in jsonTransaction
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	tx.RefBlockNum = in.RefBlockNum
	tx.RefBlockPrefix = in.RefBlockPrefix
	tx.Expiration = in.Expiration
	tx.Operations = make([]Operation, len(in.Operations))
	for i, raw := range in.Operations {
		op, err := newOperation(raw.Type)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw.Value, op); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		tx.Operations[i] = op
	}
	return in.Signatures, nil
}

func (tx Transaction) MarshalJSON() ([]byte, error) { return tx.toJSON(nil) }

func (tx *Transaction) UnmarshalJSON(b []byte) error {
	_, err := tx.fromJSON(b)
	return err
}

func (tx SignedTransaction) MarshalJSON() ([]byte, error) {
	return tx.Transaction.toJSON(tx.Signatures)
}

func (tx *SignedTransaction) UnmarshalJSON(b []byte) error {
	sigs, err := tx.Transaction.fromJSON(b)
	tx.Signatures = sigs
	return err
}

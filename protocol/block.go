// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/btcsuite/btcd/btcec/v2"
)

// BlockHeader is the unsigned part of a block header.
type BlockHeader struct {
	Previous              ids.ID  `serialize:"true" json:"previous"`
	Timestamp             uint32  `serialize:"true" json:"timestamp"`
	Witness               string  `serialize:"true" json:"witness"`
	TransactionMerkleRoot ids.ID  `serialize:"true" json:"transactionMerkleRoot"`
	Version               Version `serialize:"true" json:"version"`
	// HardforkVote is the next hardfork the producer supports, and
	// HardforkVoteTime the time it proposes for activation.
	HardforkVote     Version `serialize:"true" json:"hardforkVote"`
	HardforkVoteTime uint32  `serialize:"true" json:"hardforkVoteTime"`
}

type SignedBlockHeader struct {
	BlockHeader      `serialize:"true"`
	WitnessSignature Signature `serialize:"true" json:"witnessSignature"`
}

type SignedBlock struct {
	SignedBlockHeader `serialize:"true"`
	Transactions      []SignedTransaction `serialize:"true" json:"transactions"`
}

func (h *BlockHeader) Num() uint32 { return NumFromID(h.Previous) + 1 }

// Digest is the hash of the unsigned header, signed by the producer.
func (h *BlockHeader) Digest() (ids.ID, error) {
	b, err := Codec.Marshal(CodecVersion, h)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(b), nil
}

// ID is the header digest with its first four bytes replaced by the block
// number.
func (h *BlockHeader) ID() (ids.ID, error) {
	id, err := h.Digest()
	if err != nil {
		return ids.Empty, err
	}
	binary.BigEndian.PutUint32(id[:4], h.Num())
	return id, nil
}

// Sign sets the witness signature.
func (h *SignedBlockHeader) Sign(priv *btcec.PrivateKey) error {
	digest, err := h.Digest()
	if err != nil {
		return err
	}
	h.WitnessSignature, err = Sign(priv, digest)
	return err
}

// SigningKey recovers the key that signed the header.
func (h *SignedBlockHeader) SigningKey() (PublicKey, error) {
	digest, err := h.Digest()
	if err != nil {
		return PublicKey{}, err
	}
	return RecoverPublicKey(h.WitnessSignature, digest)
}

func (b *SignedBlock) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, b)
}

// MerkleRoot computes the transaction merkle root of the block body.
func (b *SignedBlock) MerkleRoot() (ids.ID, error) {
	digests := make([]ids.ID, len(b.Transactions))
	for i := range b.Transactions {
		raw, err := b.Transactions[i].Bytes()
		if err != nil {
			return ids.Empty, err
		}
		digests[i] = hashing.ComputeHash256Array(raw)
	}
	return MerkleRoot(digests), nil
}

// ParseBlock decodes a signed block.
func ParseBlock(raw []byte) (*SignedBlock, error) {
	blk := &SignedBlock{}
	if _, err := Codec.Unmarshal(raw, blk); err != nil {
		return nil, fmt.Errorf("failed to parse block: %w", err)
	}
	return blk, nil
}

// MerkleRoot folds [digests] pairwise. An odd element at any level is carried
// up unchanged. The root of no digests is empty.
func MerkleRoot(digests []ids.ID) ids.ID {
	if len(digests) == 0 {
		return ids.Empty
	}
	level := append([]ids.ID(nil), digests...)
	for len(level) > 1 {
		next := level[:0]
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			pair := make([]byte, 0, 2*len(ids.Empty))
			pair = append(pair, level[i][:]...)
			pair = append(pair, level[i+1][:]...)
			next = append(next, hashing.ComputeHash256Array(pair))
		}
		level = next
	}
	return level[0]
}

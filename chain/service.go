// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	avalancheJSON "github.com/ava-labs/avalanchego/utils/json"
	avalancheRPC "github.com/gorilla/rpc/v2"

	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

var errNoBlocks = errors.New("no block has been applied")

// NewHandler serves [c]'s JSON-RPC API under the service name "witnessvm".
func NewHandler(c *Chain) (http.Handler, error) {
	server := avalancheRPC.NewServer()
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json")
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json;charset=UTF-8")
	return server, server.RegisterService(&Service{chain: c}, Name)
}

// Service is the API service for the chain
type Service struct{ chain *Chain }

// TransactionArgs carries a hex encoded signed transaction
type TransactionArgs struct {
	Transaction string `json:"transaction"`
}

type BroadcastTransactionReply struct {
	TxID ids.ID `json:"txID"`
}

func parseTransaction(encoded string) (*protocol.SignedTransaction, error) {
	raw, err := formatting.Decode(formatting.Hex, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return protocol.ParseTransaction(raw)
}

// BroadcastTransaction adds a transaction to the pending state.
func (s *Service) BroadcastTransaction(_ *http.Request, args *TransactionArgs, reply *BroadcastTransactionReply) error {
	tx, err := parseTransaction(args.Transaction)
	if err != nil {
		return err
	}
	if err := s.chain.PushTransaction(tx); err != nil {
		return err
	}
	reply.TxID, err = tx.ID()
	return err
}

// FastConfirm submits a witness block approval.
func (s *Service) FastConfirm(_ *http.Request, args *TransactionArgs, _ *api.EmptyReply) error {
	tx, err := parseTransaction(args.Transaction)
	if err != nil {
		return err
	}
	return s.chain.PushFastConfirm(tx)
}

// PushBlockArgs carries a hex encoded signed block
type PushBlockArgs struct {
	Block string `json:"block"`
}

type PushBlockReply struct {
	ID     ids.ID               `json:"id"`
	Number avalancheJSON.Uint32 `json:"number"`
}

// PushBlock applies a block received from the network.
func (s *Service) PushBlock(_ *http.Request, args *PushBlockArgs, reply *PushBlockReply) error {
	raw, err := formatting.Decode(formatting.Hex, args.Block)
	if err != nil {
		return err
	}
	blk, err := protocol.ParseBlock(raw)
	if err != nil {
		return err
	}
	if err := s.chain.PushBlock(blk, SkipNothing); err != nil {
		return err
	}
	reply.ID, err = blk.ID()
	reply.Number = avalancheJSON.Uint32(blk.Num())
	return err
}

// GetBlockArgs selects a block by id or by number. If neither is given the
// head block is returned.
type GetBlockArgs struct {
	ID     *ids.ID               `json:"id"`
	Number *avalancheJSON.Uint32 `json:"number"`
}

type GetBlockReply struct {
	ID           ids.ID               `json:"id"`
	Number       avalancheJSON.Uint32 `json:"number"`
	Previous     ids.ID               `json:"previous"`
	Timestamp    avalancheJSON.Uint32 `json:"timestamp"`
	Witness      string               `json:"witness"`
	Transactions avalancheJSON.Uint32 `json:"transactions"`
	// Block is the hex encoded signed block
	Block string `json:"block"`
}

// GetBlock gets a reversible or irreversible block
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var (
		blk *protocol.SignedBlock
		err error
	)
	switch {
	case args.ID != nil:
		blk, err = s.chain.GetBlock(*args.ID)
	case args.Number != nil:
		blk, err = s.chain.GetBlockByNumber(uint32(*args.Number))
	default:
		num, _, herr := s.chain.Head()
		if herr != nil {
			return herr
		}
		if num == 0 {
			return errNoBlocks
		}
		blk, err = s.chain.GetBlockByNumber(num)
	}
	if err != nil {
		return err
	}

	raw, err := blk.Bytes()
	if err != nil {
		return err
	}
	if reply.Block, err = formatting.Encode(formatting.Hex, raw); err != nil {
		return err
	}
	reply.ID, err = blk.ID()
	reply.Number = avalancheJSON.Uint32(blk.Num())
	reply.Previous = blk.Previous
	reply.Timestamp = avalancheJSON.Uint32(blk.Timestamp)
	reply.Witness = blk.Witness
	reply.Transactions = avalancheJSON.Uint32(len(blk.Transactions))
	return err
}

func (s *Service) GetDynamicGlobalProperties(_ *http.Request, _ *struct{}, reply *ledger.GlobalProperties) error {
	g, err := s.chain.GlobalProperties()
	if err != nil {
		return err
	}
	*reply = *g
	return nil
}

type GetAccountArgs struct {
	Name string `json:"name"`
}

func (s *Service) GetAccount(_ *http.Request, args *GetAccountArgs, reply *ledger.Account) error {
	a, err := s.chain.GetAccount(args.Name)
	if err != nil {
		return err
	}
	*reply = *a
	return nil
}

func (s *Service) GetWitnessSchedule(_ *http.Request, _ *struct{}, reply *ledger.WitnessSchedule) error {
	sched, err := s.chain.WitnessSchedule()
	if err != nil {
		return err
	}
	*reply = *sched
	return nil
}

func (s *Service) GetHardforkProperty(_ *http.Request, _ *struct{}, reply *ledger.HardforkProperty) error {
	hp, err := s.chain.HardforkProperty()
	if err != nil {
		return err
	}
	*reply = *hp
	return nil
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/witnessvm/chain"
	"github.com/ava-labs/witnessvm/ledger"
	"github.com/ava-labs/witnessvm/protocol"
)

// Client defines witnessvm client operations.
type Client interface {
	// BroadcastTransaction submits a signed transaction to the node's
	// pending state
	BroadcastTransaction(ctx context.Context, tx *protocol.SignedTransaction) (ids.ID, error)

	// FastConfirm submits a witness block approval
	FastConfirm(ctx context.Context, tx *protocol.SignedTransaction) error

	// PushBlock submits a signed block
	PushBlock(ctx context.Context, blk *protocol.SignedBlock) (ids.ID, error)

	// GetBlock fetches a block by id, or the head block if [blkID] is nil
	GetBlock(ctx context.Context, blkID *ids.ID) (*protocol.SignedBlock, error)

	// GetBlockByNumber fetches the block numbered [num] on the head branch
	GetBlockByNumber(ctx context.Context, num uint32) (*protocol.SignedBlock, error)

	GetDynamicGlobalProperties(ctx context.Context) (*ledger.GlobalProperties, error)
	GetAccount(ctx context.Context, name string) (*ledger.Account, error)
	GetWitnessSchedule(ctx context.Context) (*ledger.WitnessSchedule, error)
	GetHardforkProperty(ctx context.Context) (*ledger.HardforkProperty, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func encodeTransaction(tx *protocol.SignedTransaction) (*chain.TransactionArgs, error) {
	raw, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	encoded, err := formatting.Encode(formatting.Hex, raw)
	if err != nil {
		return nil, err
	}
	return &chain.TransactionArgs{Transaction: encoded}, nil
}

func (cli *client) BroadcastTransaction(ctx context.Context, tx *protocol.SignedTransaction) (ids.ID, error) {
	args, err := encodeTransaction(tx)
	if err != nil {
		return ids.Empty, err
	}
	resp := new(chain.BroadcastTransactionReply)
	err = cli.req.SendRequest(ctx,
		"witnessvm.broadcastTransaction",
		args,
		resp,
	)
	return resp.TxID, err
}

func (cli *client) FastConfirm(ctx context.Context, tx *protocol.SignedTransaction) error {
	args, err := encodeTransaction(tx)
	if err != nil {
		return err
	}
	return cli.req.SendRequest(ctx,
		"witnessvm.fastConfirm",
		args,
		&api.EmptyReply{},
	)
}

func (cli *client) PushBlock(ctx context.Context, blk *protocol.SignedBlock) (ids.ID, error) {
	raw, err := blk.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	encoded, err := formatting.Encode(formatting.Hex, raw)
	if err != nil {
		return ids.Empty, err
	}
	resp := new(chain.PushBlockReply)
	err = cli.req.SendRequest(ctx,
		"witnessvm.pushBlock",
		&chain.PushBlockArgs{Block: encoded},
		resp,
	)
	return resp.ID, err
}

func (cli *client) GetBlock(ctx context.Context, blkID *ids.ID) (*protocol.SignedBlock, error) {
	return cli.getBlock(ctx, &chain.GetBlockArgs{ID: blkID})
}

func (cli *client) GetBlockByNumber(ctx context.Context, num uint32) (*protocol.SignedBlock, error) {
	n := json.Uint32(num)
	return cli.getBlock(ctx, &chain.GetBlockArgs{Number: &n})
}

func (cli *client) getBlock(ctx context.Context, args *chain.GetBlockArgs) (*protocol.SignedBlock, error) {
	resp := new(chain.GetBlockReply)
	err := cli.req.SendRequest(ctx,
		"witnessvm.getBlock",
		args,
		resp,
	)
	if err != nil {
		return nil, err
	}
	raw, err := formatting.Decode(formatting.Hex, resp.Block)
	if err != nil {
		return nil, err
	}
	return protocol.ParseBlock(raw)
}

func (cli *client) GetDynamicGlobalProperties(ctx context.Context) (*ledger.GlobalProperties, error) {
	resp := new(ledger.GlobalProperties)
	err := cli.req.SendRequest(ctx, "witnessvm.getDynamicGlobalProperties", struct{}{}, resp)
	return resp, err
}

func (cli *client) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	resp := new(ledger.Account)
	err := cli.req.SendRequest(ctx,
		"witnessvm.getAccount",
		&chain.GetAccountArgs{Name: name},
		resp,
	)
	return resp, err
}

func (cli *client) GetWitnessSchedule(ctx context.Context) (*ledger.WitnessSchedule, error) {
	resp := new(ledger.WitnessSchedule)
	err := cli.req.SendRequest(ctx, "witnessvm.getWitnessSchedule", struct{}{}, resp)
	return resp, err
}

func (cli *client) GetHardforkProperty(ctx context.Context) (*ledger.HardforkProperty, error) {
	resp := new(ledger.HardforkProperty)
	err := cli.req.SendRequest(ctx, "witnessvm.getHardforkProperty", struct{}{}, resp)
	return resp, err
}

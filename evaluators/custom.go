// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluators

import (
	"fmt"

	"github.com/ava-labs/witnessvm/protocol"
)

func applyCustom(ctx *Context, op *protocol.Custom) error {
	return countCustom(ctx, op.RequiredAuths)
}

func applyCustomJSON(ctx *Context, op *protocol.CustomJSON) error {
	return countCustom(ctx, append(append([]string(nil), op.RequiredAuths...), op.RequiredPostingAuths...))
}

// countCustom charges one custom operation to each signer for the current
// block. The counter lives in state, so operations already accepted into the
// pending block count towards the limit.
func countCustom(ctx *Context, signers []string) error {
	if !ctx.HasHardfork(protocol.HardforkFastConfirm) {
		return nil
	}
	seen := make(map[string]struct{}, len(signers))
	for _, name := range signers {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, err := ctx.Ledger.Account(name); err != nil {
			return err
		}
		n, err := ctx.Ledger.CustomOpCount(name, ctx.BlockNum)
		if err != nil {
			return err
		}
		if n >= protocol.CustomOpBlockLimit {
			return fmt.Errorf("%w: %q submitted %d in block %d", ErrCustomOperationLimit, name, n, ctx.BlockNum)
		}
		if err := ctx.Ledger.PutCustomOpCount(name, ctx.BlockNum, n+1); err != nil {
			return err
		}
	}
	return nil
}

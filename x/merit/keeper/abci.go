package keeper

import (
	"context"
	"errors"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
	"github.com/paw-chain/merit/x/shared/abci"
)

// EndBlocker is called at the end of every block.
// It slashes validators below the downtime threshold and closes proposals
// whose outcome is decided.
func (k Keeper) EndBlocker(ctx context.Context) error {
	reporter := abci.NewHookReporter(sdk.UnwrapSDKContext(ctx), types.ModuleName)

	err := k.SlashDowntime(ctx)
	reporter.Report("slash_downtime", hookSeverity(err, abci.SeverityHigh), err)
	err = k.FinalizeDecidedProposals(ctx)
	reporter.Report("finalize_proposals", hookSeverity(err, abci.SeverityLow), err)
	return nil
}

// FinalizeDecidedProposals finalizes every voting proposal that
// FinalizeProposal would accept right now.
func (k Keeper) FinalizeDecidedProposals(ctx context.Context) error {
	var open []uint64
	err := k.IterateProposals(ctx, func(p types.Proposal) (bool, error) {
		if p.Status == types.ProposalStatusVoting {
			open = append(open, p.ID)
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	for _, id := range open {
		if _, err := k.FinalizeProposal(ctx, id); err != nil {
			if errors.Is(err, types.ErrDeliberationPending) {
				continue
			}
			return err
		}
	}
	return nil
}

// hookSeverity escalates invariant violations to critical.
func hookSeverity(err error, fallback abci.Severity) abci.Severity {
	if errors.Is(err, types.ErrInvariantViolation) {
		return abci.SeverityCritical
	}
	return fallback
}

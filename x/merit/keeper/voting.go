package keeper

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// CreateProposal opens a proposal for quadratic voting. The deliberation
// period is raised to the minimum of its category.
func (k Keeper) CreateProposal(ctx context.Context, proposer sdk.AccAddress, category types.ProposalCategory, description string, deliberation time.Duration) (uint64, error) {
	if !category.IsValid() {
		return 0, types.ErrInvalidProposal.Wrapf("unknown proposal category %q", category)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, types.ErrInvalidProposal.Wrap("description required")
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	rule, err := params.Rule(category)
	if err != nil {
		return 0, err
	}
	if deliberation < rule.MinDeliberation {
		deliberation = rule.MinDeliberation
	}

	power, err := k.TotalStaked(ctx)
	if err != nil {
		return 0, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	proposal := types.Proposal{
		ID:                 k.nextSequence(ctx, NextProposalIDKey),
		Proposer:           proposer.String(),
		Category:           category,
		Description:        description,
		CreatedAt:          sdkCtx.BlockTime(),
		DeliberationPeriod: deliberation,
		Status:             types.ProposalStatusVoting,
		PowerAtCreation:    power,
		SpentFor:           math.ZeroInt(),
	}
	if err := k.setProposal(ctx, proposal); err != nil {
		return 0, err
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeProposalCreated,
			sdk.NewAttribute(types.AttributeKeyProposal, strconv.FormatUint(proposal.ID, 10)),
			sdk.NewAttribute(types.AttributeKeyOwner, proposer.String()),
			sdk.NewAttribute(types.AttributeKeyCategory, string(category)),
		),
	)
	return proposal.ID, nil
}

// CastQuadraticVote adds votes for option on behalf of voter. Each call costs
// votes² of the voter's stake at proposal creation; the cumulative cost may
// not exceed that snapshot. Repeat votes must keep the first option.
func (k Keeper) CastQuadraticVote(ctx context.Context, proposalID uint64, voter sdk.AccAddress, option types.VoteOption, votes uint64) (types.VoteRecord, error) {
	if !option.IsValid() {
		return types.VoteRecord{}, types.ErrInvalidVote.Wrapf("unknown option %q", option)
	}
	if votes == 0 {
		return types.VoteRecord{}, types.ErrInvalidVote.Wrap("votes must be positive")
	}

	proposal, err := k.GetProposal(ctx, proposalID)
	if err != nil {
		return types.VoteRecord{}, err
	}
	if proposal.Status != types.ProposalStatusVoting {
		return types.VoteRecord{}, types.ErrProposalFinalized.Wrapf("proposal %d is %s", proposalID, proposal.Status)
	}
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if !sdkCtx.BlockTime().Before(proposal.VotingEnd()) {
		return types.VoteRecord{}, types.ErrVotingClosed.Wrapf("proposal %d closed at %s", proposalID, proposal.VotingEnd().UTC().Format(time.RFC3339))
	}

	snapshot, err := k.StakeAt(ctx, voter, proposal.CreatedAt)
	if err != nil {
		return types.VoteRecord{}, err
	}

	record, found, err := k.getVote(ctx, proposalID, voter)
	if err != nil {
		return types.VoteRecord{}, err
	}
	if !found {
		record = types.VoteRecord{
			ProposalID: proposalID,
			Voter:      voter.String(),
			Option:     option,
			Spent:      math.ZeroInt(),
		}
	} else if record.Option != option {
		return types.VoteRecord{}, types.ErrConflictingVote.Wrapf("already voted %s on proposal %d", record.Option, proposalID)
	}

	cost := math.NewIntFromUint64(votes)
	cost = cost.Mul(cost)
	if record.Spent.Add(cost).GT(snapshot) {
		return types.VoteRecord{}, types.ErrVotingPowerExceeded.Wrapf("cost %s with %s spent exceeds voting power %s", cost, record.Spent, snapshot)
	}

	record.Votes += votes
	record.Spent = record.Spent.Add(cost)
	switch option {
	case types.VoteFor:
		proposal.TallyFor += votes
		if proposal.SpentFor.IsNil() {
			proposal.SpentFor = math.ZeroInt()
		}
		proposal.SpentFor = proposal.SpentFor.Add(cost)
	case types.VoteAgainst:
		proposal.TallyAgainst += votes
	default:
		proposal.TallyAbstain += votes
	}

	if err := k.setVote(ctx, record); err != nil {
		return types.VoteRecord{}, err
	}
	if err := k.setProposal(ctx, proposal); err != nil {
		return types.VoteRecord{}, err
	}

	k.metrics.VotesCast.WithLabelValues(string(option)).Inc()
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeQuadraticVoteCast,
			sdk.NewAttribute(types.AttributeKeyProposal, strconv.FormatUint(proposalID, 10)),
			sdk.NewAttribute(types.AttributeKeyVoter, voter.String()),
			sdk.NewAttribute(types.AttributeKeyOption, string(option)),
			sdk.NewAttribute(types.AttributeKeyVotes, strconv.FormatUint(votes, 10)),
			sdk.NewAttribute(types.AttributeKeyCost, cost.String()),
		),
	)
	return record, nil
}

// FinalizeProposal closes a proposal once its rule allows it. An emergency
// proposal passes early only when its approval reaches the threshold and the
// stake spent on "for" votes is at least that percentage of the stake locked
// at creation. Every other outcome waits for the deliberation period to end.
func (k Keeper) FinalizeProposal(ctx context.Context, proposalID uint64) (types.ProposalStatus, error) {
	proposal, err := k.GetProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	if proposal.Status != types.ProposalStatusVoting {
		return 0, types.ErrProposalFinalized.Wrapf("proposal %d is %s", proposalID, proposal.Status)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	rule, err := params.Rule(proposal.Category)
	if err != nil {
		return 0, err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime()
	approval := proposal.Approval()
	passes := approval.GTE(rule.Threshold)
	if rule.Strict {
		passes = approval.GT(rule.Threshold)
	}

	switch {
	case passes && rule.EarlyExecution && proposal.BackingPercent().GTE(rule.Threshold):
		proposal.Status = types.ProposalStatusPassed
	case now.Before(proposal.VotingEnd()):
		return 0, types.ErrDeliberationPending.Wrapf("proposal %d deliberates until %s", proposalID, proposal.VotingEnd().UTC().Format(time.RFC3339))
	case passes:
		proposal.Status = types.ProposalStatusPassed
	default:
		proposal.Status = types.ProposalStatusRejected
	}
	proposal.FinalizedAt = &now

	if err := k.setProposal(ctx, proposal); err != nil {
		return 0, err
	}

	k.metrics.ProposalsFinalized.WithLabelValues(proposal.Status.String()).Inc()
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeProposalFinalized,
			sdk.NewAttribute(types.AttributeKeyProposal, strconv.FormatUint(proposalID, 10)),
			sdk.NewAttribute(types.AttributeKeyStatus, proposal.Status.String()),
			sdk.NewAttribute(types.AttributeKeyApproval, approval.String()),
		),
	)
	return proposal.Status, nil
}

// VotingAllowance returns the voting power voter has left on a proposal and
// the largest single vote it can still afford.
func (k Keeper) VotingAllowance(ctx context.Context, proposalID uint64, voter sdk.AccAddress) (math.Int, uint64, error) {
	proposal, err := k.GetProposal(ctx, proposalID)
	if err != nil {
		return math.Int{}, 0, err
	}
	snapshot, err := k.StakeAt(ctx, voter, proposal.CreatedAt)
	if err != nil {
		return math.Int{}, 0, err
	}
	record, found, err := k.getVote(ctx, proposalID, voter)
	if err != nil {
		return math.Int{}, 0, err
	}

	remaining := snapshot
	if found {
		if record.Spent.GT(snapshot) {
			return math.Int{}, 0, k.invariantViolation(ctx, "voter %s spent %s above snapshot %s", voter, record.Spent, snapshot)
		}
		remaining = snapshot.Sub(record.Spent)
	}
	return remaining, maxVotes(remaining), nil
}

// maxVotes returns floor(sqrt(remaining)).
func maxVotes(remaining math.Int) uint64 {
	if !remaining.IsPositive() {
		return 0
	}
	root := new(big.Int).Sqrt(remaining.BigInt())
	if !root.IsUint64() {
		return ^uint64(0)
	}
	return root.Uint64()
}

// GetProposal returns a proposal by id.
func (k Keeper) GetProposal(ctx context.Context, id uint64) (types.Proposal, error) {
	proposal, found, err := getJSON[types.Proposal](k.getStore(ctx), ProposalKey(id))
	if err != nil {
		return types.Proposal{}, err
	}
	if !found {
		return types.Proposal{}, types.ErrProposalNotFound.Wrapf("proposal %d", id)
	}
	return proposal, nil
}

func (k Keeper) setProposal(ctx context.Context, proposal types.Proposal) error {
	return setJSON(k.getStore(ctx), ProposalKey(proposal.ID), proposal)
}

// IterateProposals walks every proposal in id order.
func (k Keeper) IterateProposals(ctx context.Context, cb func(p types.Proposal) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), ProposalKeyPrefix, func(_ []byte, p types.Proposal) (bool, error) {
		return cb(p)
	})
}

// GetVote returns the vote record of voter on a proposal.
func (k Keeper) GetVote(ctx context.Context, proposalID uint64, voter sdk.AccAddress) (types.VoteRecord, bool, error) {
	return k.getVote(ctx, proposalID, voter)
}

func (k Keeper) getVote(ctx context.Context, proposalID uint64, voter sdk.AccAddress) (types.VoteRecord, bool, error) {
	return getJSON[types.VoteRecord](k.getStore(ctx), VoteKey(proposalID, voter))
}

func (k Keeper) setVote(ctx context.Context, record types.VoteRecord) error {
	voter, err := sdk.AccAddressFromBech32(record.Voter)
	if err != nil {
		return err
	}
	return setJSON(k.getStore(ctx), VoteKey(record.ProposalID, voter), record)
}

// IterateVotes walks every vote record.
func (k Keeper) IterateVotes(ctx context.Context, cb func(v types.VoteRecord) (stop bool, err error)) error {
	return iterateJSON(k.getStore(ctx), VoteKeyPrefix, func(_ []byte, v types.VoteRecord) (bool, error) {
		return cb(v)
	})
}

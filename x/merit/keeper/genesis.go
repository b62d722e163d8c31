package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// InitGenesis initializes the merit module's state from a genesis state
func (k Keeper) InitGenesis(ctx context.Context, data types.GenesisState) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, data.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}

	store := k.getStore(ctx)

	total := math.ZeroInt()
	for _, position := range data.Positions {
		if err := k.setPosition(ctx, position); err != nil {
			return fmt.Errorf("failed to initialize position %s: %w", position.Owner, err)
		}
		if position.Active {
			total = total.Add(position.Amount)
		}
	}
	if err := k.setInt(ctx, TotalStakedKey, total); err != nil {
		return err
	}

	for _, position := range data.PositionHistory {
		owner, err := sdk.AccAddressFromBech32(position.Owner)
		if err != nil {
			return fmt.Errorf("invalid history owner %s: %w", position.Owner, err)
		}
		if err := setJSON(store, PositionHistoryKey(owner, position.LastRewardTime), position); err != nil {
			return err
		}
	}

	for _, record := range data.Validators {
		if err := k.setValidatorRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to initialize validator %s: %w", record.Validator, err)
		}
	}

	for _, checkpoint := range data.Checkpoints {
		owner, err := sdk.AccAddressFromBech32(checkpoint.Owner)
		if err != nil {
			return fmt.Errorf("invalid checkpoint owner %s: %w", checkpoint.Owner, err)
		}
		if err := setJSON(store, CheckpointKey(owner, checkpoint.Time), checkpoint); err != nil {
			return err
		}
	}

	for _, contribution := range data.Contributions {
		owner, err := sdk.AccAddressFromBech32(contribution.Owner)
		if err != nil {
			return fmt.Errorf("invalid contribution owner %s: %w", contribution.Owner, err)
		}
		if err := setJSON(store, ContributionKey(contribution.ID), contribution); err != nil {
			return err
		}
		store.Set(ContributionByOwnerKey(owner, contribution.ID), []byte{0x01})
	}

	for _, review := range data.Reviews {
		reviewer, err := sdk.AccAddressFromBech32(review.Reviewer)
		if err != nil {
			return fmt.Errorf("invalid reviewer %s: %w", review.Reviewer, err)
		}
		if err := setJSON(store, ReviewKey(review.ContributionID, reviewer), review); err != nil {
			return err
		}
	}

	for _, profile := range data.Profiles {
		if err := k.setProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to initialize profile %s: %w", profile.Contributor, err)
		}
	}

	for _, proposal := range data.Proposals {
		if err := k.setProposal(ctx, proposal); err != nil {
			return err
		}
	}
	for _, vote := range data.Votes {
		if err := k.setVote(ctx, vote); err != nil {
			return fmt.Errorf("failed to initialize vote of %s: %w", vote.Voter, err)
		}
	}

	for _, record := range data.SlashRecords {
		if err := k.setSlashRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to initialize slash record %d: %w", record.ID, err)
		}
	}
	if err := k.setInt(ctx, InsurancePoolKey, data.InsurancePool); err != nil {
		return err
	}

	for _, count := range data.SubmissionCounts {
		owner, err := sdk.AccAddressFromBech32(count.Owner)
		if err != nil {
			return fmt.Errorf("invalid submission owner %s: %w", count.Owner, err)
		}
		k.setSubmissionCount(ctx, owner, count.Count)
	}

	for _, reviewer := range data.Reviewers {
		addr, err := sdk.AccAddressFromBech32(reviewer)
		if err != nil {
			return fmt.Errorf("invalid reviewer %s: %w", reviewer, err)
		}
		k.setAllowList(ctx, ReviewerKey(addr), true)
	}
	for _, operator := range data.Operators {
		addr, err := sdk.AccAddressFromBech32(operator)
		if err != nil {
			return fmt.Errorf("invalid operator %s: %w", operator, err)
		}
		k.setAllowList(ctx, OperatorKey(addr), true)
	}

	k.setSequence(ctx, NextContributionIDKey, max(data.NextContributionID, 1))
	k.setSequence(ctx, NextProposalIDKey, max(data.NextProposalID, 1))
	k.setSequence(ctx, NextSlashIDKey, max(data.NextSlashID, 1))

	return nil
}

// ExportGenesis exports the merit module's state to a genesis state
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get params: %w", err)
	}

	gs := &types.GenesisState{
		Params:             params,
		NextContributionID: k.peekSequence(ctx, NextContributionIDKey),
		NextProposalID:     k.peekSequence(ctx, NextProposalIDKey),
		NextSlashID:        k.peekSequence(ctx, NextSlashIDKey),
	}

	if err := k.IteratePositions(ctx, func(p types.StakePosition) (bool, error) {
		gs.Positions = append(gs.Positions, p)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	store := k.getStore(ctx)
	if err := iterateJSON(store, PositionHistoryPrefix, func(_ []byte, p types.StakePosition) (bool, error) {
		gs.PositionHistory = append(gs.PositionHistory, p)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate position history: %w", err)
	}

	if err := k.IterateValidators(ctx, func(r types.ValidatorRecord) (bool, error) {
		gs.Validators = append(gs.Validators, r)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate validators: %w", err)
	}

	if err := k.IterateCheckpoints(ctx, func(c types.StakeCheckpoint) (bool, error) {
		gs.Checkpoints = append(gs.Checkpoints, c)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}

	if err := k.IterateContributions(ctx, func(c types.Contribution) (bool, error) {
		gs.Contributions = append(gs.Contributions, c)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}

	if err := k.IterateReviews(ctx, func(r types.ReviewRecord) (bool, error) {
		gs.Reviews = append(gs.Reviews, r)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	if err := k.IterateProfiles(ctx, func(p types.ContributorProfile) (bool, error) {
		gs.Profiles = append(gs.Profiles, p)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	if err := k.IterateProposals(ctx, func(p types.Proposal) (bool, error) {
		gs.Proposals = append(gs.Proposals, p)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}

	if err := k.IterateVotes(ctx, func(v types.VoteRecord) (bool, error) {
		gs.Votes = append(gs.Votes, v)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}

	if err := k.IterateSlashRecords(ctx, func(r types.SlashRecord) (bool, error) {
		gs.SlashRecords = append(gs.SlashRecords, r)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate slash records: %w", err)
	}

	if gs.InsurancePool, err = k.InsurancePool(ctx); err != nil {
		return nil, err
	}

	countIter := storetypes.KVStorePrefixIterator(store, SubmissionCountPrefix)
	defer countIter.Close()
	for ; countIter.Valid(); countIter.Next() {
		owner := sdk.AccAddress(countIter.Key()[len(SubmissionCountPrefix):])
		gs.SubmissionCounts = append(gs.SubmissionCounts, types.SubmissionCount{
			Owner: owner.String(),
			Count: sdk.BigEndianToUint64(countIter.Value()),
		})
	}

	gs.Reviewers = k.allowListed(ctx, ReviewerKeyPrefix)
	gs.Operators = k.allowListed(ctx, OperatorKeyPrefix)

	return gs, nil
}

package types

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// GenesisState is the full exported ledger of the merit module.
type GenesisState struct {
	Params             Params               `json:"params"`
	Positions          []StakePosition      `json:"positions"`
	PositionHistory    []StakePosition      `json:"position_history"`
	Validators         []ValidatorRecord    `json:"validators"`
	Checkpoints        []StakeCheckpoint    `json:"checkpoints"`
	Contributions      []Contribution       `json:"contributions"`
	Reviews            []ReviewRecord       `json:"reviews"`
	Profiles           []ContributorProfile `json:"profiles"`
	Proposals          []Proposal           `json:"proposals"`
	Votes              []VoteRecord         `json:"votes"`
	SlashRecords       []SlashRecord        `json:"slash_records"`
	SubmissionCounts   []SubmissionCount    `json:"submission_counts"`
	Reviewers          []string             `json:"reviewers"`
	Operators          []string             `json:"operators"`
	InsurancePool      math.Int             `json:"insurance_pool"`
	NextContributionID uint64               `json:"next_contribution_id"`
	NextProposalID     uint64               `json:"next_proposal_id"`
	NextSlashID        uint64               `json:"next_slash_id"`
}

// SubmissionCount is the number of contributions an owner has submitted.
type SubmissionCount struct {
	Owner string `json:"owner"`
	Count uint64 `json:"count"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:             DefaultParams(),
		InsurancePool:      math.ZeroInt(),
		NextContributionID: 1,
		NextProposalID:     1,
		NextSlashID:        1,
	}
}

// Validate performs basic genesis state validation returning an error upon any
// failure.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if gs.InsurancePool.IsNil() || gs.InsurancePool.IsNegative() {
		return ErrInvalidGenesis.Wrap("insurance pool must be non-negative")
	}

	activeOwners := make(map[string]bool)
	for i, pos := range gs.Positions {
		if _, err := sdk.AccAddressFromBech32(pos.Owner); err != nil {
			return ErrInvalidGenesis.Wrapf("position %d: invalid owner: %v", i, err)
		}
		if !pos.Role.IsValid() {
			return ErrInvalidGenesis.Wrapf("position %d: invalid role %q", i, pos.Role)
		}
		if pos.Amount.IsNil() || pos.Amount.IsNegative() {
			return ErrInvalidGenesis.Wrapf("position %d: negative amount", i)
		}
		if pos.PerformanceScore > 100 {
			return ErrInvalidGenesis.Wrapf("position %d: performance %d exceeds 100", i, pos.PerformanceScore)
		}
		if pos.Active {
			if activeOwners[pos.Owner] {
				return ErrInvalidGenesis.Wrapf("position %d: second active position for %s", i, pos.Owner)
			}
			activeOwners[pos.Owner] = true
		}
	}

	seenContributions := make(map[uint64]bool)
	for i, c := range gs.Contributions {
		if c.ID == 0 || c.ID >= gs.NextContributionID {
			return ErrInvalidGenesis.Wrapf("contribution %d: id %d outside [1,%d)", i, c.ID, gs.NextContributionID)
		}
		if seenContributions[c.ID] {
			return ErrInvalidGenesis.Wrapf("contribution %d: duplicate id %d", i, c.ID)
		}
		seenContributions[c.ID] = true
		if err := c.Proof.Validate(); err != nil {
			return ErrInvalidGenesis.Wrapf("contribution %d: %v", c.ID, err)
		}
		if c.Status != StatusRewarded && c.RewardAmount.IsPositive() {
			return ErrInvalidGenesis.Wrapf("contribution %d: reward set while %s", c.ID, c.Status)
		}
	}

	seenReviews := make(map[string]bool)
	for i, r := range gs.Reviews {
		if !seenContributions[r.ContributionID] {
			return ErrInvalidGenesis.Wrapf("review %d: unknown contribution %d", i, r.ContributionID)
		}
		key := fmt.Sprintf("%d/%s", r.ContributionID, r.Reviewer)
		if seenReviews[key] {
			return ErrInvalidGenesis.Wrapf("review %d: duplicate review %s", i, key)
		}
		seenReviews[key] = true
	}

	seenProposals := make(map[uint64]bool)
	for i, p := range gs.Proposals {
		if p.ID == 0 || p.ID >= gs.NextProposalID {
			return ErrInvalidGenesis.Wrapf("proposal %d: id %d outside [1,%d)", i, p.ID, gs.NextProposalID)
		}
		if seenProposals[p.ID] {
			return ErrInvalidGenesis.Wrapf("proposal %d: duplicate id %d", i, p.ID)
		}
		seenProposals[p.ID] = true
	}
	for i, v := range gs.Votes {
		if !seenProposals[v.ProposalID] {
			return ErrInvalidGenesis.Wrapf("vote %d: unknown proposal %d", i, v.ProposalID)
		}
	}

	slashed := math.ZeroInt()
	for i, s := range gs.SlashRecords {
		if s.ID == 0 || s.ID >= gs.NextSlashID {
			return ErrInvalidGenesis.Wrapf("slash record %d: id %d outside [1,%d)", i, s.ID, gs.NextSlashID)
		}
		if s.Amount.IsNil() || s.Amount.IsNegative() {
			return ErrInvalidGenesis.Wrapf("slash record %d: negative amount", s.ID)
		}
		slashed = slashed.Add(s.Amount)
	}
	if !slashed.Equal(gs.InsurancePool) {
		return ErrInvalidGenesis.Wrapf("insurance pool %s does not match slashed total %s", gs.InsurancePool, slashed)
	}

	for i, c := range gs.SubmissionCounts {
		if _, err := sdk.AccAddressFromBech32(c.Owner); err != nil {
			return ErrInvalidGenesis.Wrapf("submission count %d: invalid owner: %v", i, err)
		}
	}

	return nil
}

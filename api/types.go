package api

import (
	"time"

	"cosmossdk.io/math"

	"github.com/paw-chain/merit/x/merit/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusResponse describes the committed ledger head.
type StatusResponse struct {
	ChainID       string    `json:"chain_id"`
	Height        int64     `json:"height"`
	LastBlockTime time.Time `json:"last_block_time"`
}

// PositionResponse is a stake position with its pending rewards.
type PositionResponse struct {
	Position       types.StakePosition `json:"position"`
	PendingRewards math.Int            `json:"pending_rewards"`
	UnlockTime     time.Time           `json:"unlock_time"`
}

// ValidatorResponse is a validator record with its slash history.
type ValidatorResponse struct {
	Record  types.ValidatorRecord `json:"record"`
	Slashes []types.SlashRecord   `json:"slashes"`
}

// ContributionResponse is a contribution with its reviews.
type ContributionResponse struct {
	Contribution types.Contribution   `json:"contribution"`
	Reviews      []types.ReviewRecord `json:"reviews"`
}

// ContributorResponse is a contributor profile with its decayed reputation.
type ContributorResponse struct {
	Profile             types.ContributorProfile `json:"profile"`
	EffectiveReputation math.LegacyDec           `json:"effective_reputation"`
	Contributions       []types.Contribution     `json:"contributions"`
	Submissions         uint64                   `json:"submissions"`
}

// AllowanceResponse is the unspent voting power of a voter on a proposal.
type AllowanceResponse struct {
	ProposalID uint64   `json:"proposal_id"`
	Voter      string   `json:"voter"`
	Remaining  math.Int `json:"remaining"`
	MaxVotes   uint64   `json:"max_votes"`
}

// StatsResponse aggregates ledger totals.
type StatsResponse struct {
	TotalStaked   math.Int `json:"total_staked"`
	EscrowBalance math.Int `json:"escrow_balance"`
	RewardPool    math.Int `json:"reward_pool"`
	InsurancePool math.Int `json:"insurance_pool"`
}

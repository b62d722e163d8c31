package types

import (
	"time"

	"cosmossdk.io/math"
)

// StakePosition is the locked balance of one account for one role.
type StakePosition struct {
	Owner              string        `json:"owner"`
	Role               Role          `json:"role"`
	Amount             math.Int      `json:"amount"`
	StartTime          time.Time     `json:"start_time"`
	LockDuration       time.Duration `json:"lock_duration"`
	Active             bool          `json:"active"`
	PerformanceScore   uint32        `json:"performance_score"`
	AccumulatedRewards math.Int      `json:"accumulated_rewards"`
	LastRewardTime     time.Time     `json:"last_reward_time"`
	Metadata           string        `json:"metadata,omitempty"`
}

// UnlockTime returns the earliest time the position can be closed.
func (p StakePosition) UnlockTime() time.Time {
	return p.StartTime.Add(p.LockDuration)
}

// ValidatorRecord tracks the liveness of a validator position.
type ValidatorRecord struct {
	Validator    string     `json:"validator"`
	NodeID       string     `json:"node_id"`
	Uptime       uint32     `json:"uptime"`
	TotalBlocks  uint64     `json:"total_blocks"`
	MissedBlocks uint64     `json:"missed_blocks"`
	Active       bool       `json:"active"`
	RegisteredAt time.Time  `json:"registered_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// StakeCheckpoint records the locked amount of an account from Time onwards.
type StakeCheckpoint struct {
	Owner  string    `json:"owner"`
	Time   time.Time `json:"time"`
	Amount math.Int  `json:"amount"`
}

// ReviewCriteria holds the raw scores a reviewer assigns, each in [0,100].
type ReviewCriteria struct {
	Technical     uint32 `json:"technical"`
	Innovation    uint32 `json:"innovation"`
	Impact        uint32 `json:"impact"`
	Documentation uint32 `json:"documentation"`
	Community     uint32 `json:"community"`
}

// Validate checks that every criterion lies in [0,100].
func (c ReviewCriteria) Validate() error {
	scores := []struct {
		name  string
		value uint32
	}{
		{"technical", c.Technical},
		{"innovation", c.Innovation},
		{"impact", c.Impact},
		{"documentation", c.Documentation},
		{"community", c.Community},
	}
	for _, s := range scores {
		if s.value > 100 {
			return ErrInvalidCriteria.Wrapf("%s score %d exceeds 100", s.name, s.value)
		}
	}
	return nil
}

// Contribution is a unit of declared work submitted for review and reward.
type Contribution struct {
	ID            uint64             `json:"id"`
	Owner         string             `json:"owner"`
	Category      Category           `json:"category"`
	Proof         Proof              `json:"proof"`
	DeclaredValue math.Int           `json:"declared_value"`
	QualityScore  math.LegacyDec     `json:"quality_score"`
	ImpactScore   math.LegacyDec     `json:"impact_score"`
	QualityHint   *math.LegacyDec    `json:"quality_hint,omitempty"`
	Status        ContributionStatus `json:"status"`
	SubmittedAt   time.Time          `json:"submitted_at"`
	ReviewedAt    *time.Time         `json:"reviewed_at,omitempty"`
	RewardAmount  math.Int           `json:"reward_amount"`
	Reviewers     []string           `json:"reviewers"`
	RejectReason  string             `json:"reject_reason,omitempty"`

	// RequiredReviews is the quorum in force when the contribution was
	// submitted. Later parameter updates do not move it.
	RequiredReviews uint32 `json:"required_reviews,omitempty"`
}

// Quorum returns the number of reviews that resolves the contribution.
// Contributions recorded without one use fallback.
func (c Contribution) Quorum(fallback uint32) uint32 {
	if c.RequiredReviews > 0 {
		return c.RequiredReviews
	}
	return fallback
}

// HasReviewer reports whether reviewer already reviewed the contribution.
func (c Contribution) HasReviewer(reviewer string) bool {
	for _, r := range c.Reviewers {
		if r == reviewer {
			return true
		}
	}
	return false
}

// ReviewRecord is one reviewer's immutable assessment of a contribution.
type ReviewRecord struct {
	ContributionID uint64         `json:"contribution_id"`
	Reviewer       string         `json:"reviewer"`
	Criteria       ReviewCriteria `json:"criteria"`
	Quality        math.LegacyDec `json:"quality"`
	Impact         math.LegacyDec `json:"impact"`
	Composite      math.LegacyDec `json:"composite"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

// ContributorProfile aggregates the rewarded history of a contributor.
type ContributorProfile struct {
	Contributor          string         `json:"contributor"`
	TotalContributions   uint64         `json:"total_contributions"`
	TotalRewards         math.Int       `json:"total_rewards"`
	QualitySum           math.LegacyDec `json:"quality_sum"`
	ReputationScore      math.LegacyDec `json:"reputation_score"`
	LastContributionTime time.Time      `json:"last_contribution_time"`
	Active               bool           `json:"active"`
}

// AverageQuality returns the mean quality of rewarded contributions.
func (p ContributorProfile) AverageQuality() math.LegacyDec {
	if p.TotalContributions == 0 {
		return math.LegacyZeroDec()
	}
	return p.QualitySum.QuoInt64(int64(p.TotalContributions))
}

// Proposal is a governance question decided by quadratic voting.
type Proposal struct {
	ID                 uint64           `json:"id"`
	Proposer           string           `json:"proposer"`
	Category           ProposalCategory `json:"category"`
	Description        string           `json:"description"`
	CreatedAt          time.Time        `json:"created_at"`
	DeliberationPeriod time.Duration    `json:"deliberation_period"`
	Status             ProposalStatus   `json:"status"`
	TallyFor           uint64           `json:"tally_for"`
	TallyAgainst       uint64           `json:"tally_against"`
	TallyAbstain       uint64           `json:"tally_abstain"`
	FinalizedAt        *time.Time       `json:"finalized_at,omitempty"`

	// PowerAtCreation is the total locked stake when the proposal opened and
	// SpentFor the quadratic cost paid by "for" voters so far.
	PowerAtCreation math.Int `json:"power_at_creation"`
	SpentFor        math.Int `json:"spent_for"`
}

// BackingPercent returns the share of PowerAtCreation committed to "for"
// votes as a percentage; zero when no stake existed at creation.
func (p Proposal) BackingPercent() math.LegacyDec {
	if p.PowerAtCreation.IsNil() || !p.PowerAtCreation.IsPositive() || p.SpentFor.IsNil() {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDecFromInt(p.SpentFor).MulInt64(100).QuoInt(p.PowerAtCreation)
}

// VotingEnd returns the time the deliberation window closes.
func (p Proposal) VotingEnd() time.Time {
	return p.CreatedAt.Add(p.DeliberationPeriod)
}

// Approval returns for/(for+against) as a percentage; zero when nothing was cast.
func (p Proposal) Approval() math.LegacyDec {
	decisive := p.TallyFor + p.TallyAgainst
	if decisive == 0 {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDecFromInt(math.NewIntFromUint64(p.TallyFor)).
		MulInt64(100).
		QuoInt(math.NewIntFromUint64(decisive))
}

// VoteRecord ties a voter's cumulative quadratic spend to a proposal.
type VoteRecord struct {
	ProposalID uint64     `json:"proposal_id"`
	Voter      string     `json:"voter"`
	Option     VoteOption `json:"option"`
	Votes      uint64     `json:"votes"`
	Spent      math.Int   `json:"spent"`
}

// SlashRecord is an append-only audit entry for a slashing event.
type SlashRecord struct {
	ID               uint64    `json:"id"`
	Validator        string    `json:"validator"`
	Amount           math.Int  `json:"amount"`
	Reason           string    `json:"reason"`
	PerformanceAfter uint32    `json:"performance_after"`
	SlashedAt        time.Time `json:"slashed_at"`
}

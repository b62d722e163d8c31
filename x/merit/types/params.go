package types

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
)

// Day is the time unit for lock floors, decay and deliberation windows.
const Day = 24 * time.Hour

// Year is the accrual denominator used for staking rewards.
const Year = 365 * Day

// CriteriaWeights weights the five review criteria. The weights are
// percentages and must add up to 100.
type CriteriaWeights struct {
	Technical     uint32 `json:"technical"`
	Innovation    uint32 `json:"innovation"`
	Impact        uint32 `json:"impact"`
	Documentation uint32 `json:"documentation"`
	Community     uint32 `json:"community"`
}

// Sum returns the total weight.
func (w CriteriaWeights) Sum() uint64 {
	return uint64(w.Technical) + uint64(w.Innovation) + uint64(w.Impact) + uint64(w.Documentation) + uint64(w.Community)
}

// Validate checks that the weights add up to 100.
func (w CriteriaWeights) Validate() error {
	if sum := w.Sum(); sum != 100 {
		return ErrInvalidWeights.Wrapf("criteria weights sum to %d", sum)
	}
	return nil
}

// ReputationWeights weights the reputation components.
type ReputationWeights struct {
	Count       uint32 `json:"count"`
	Quality     uint32 `json:"quality"`
	Consistency uint32 `json:"consistency"`
	PeerReview  uint32 `json:"peer_review"`
}

// Sum returns the total weight.
func (w ReputationWeights) Sum() uint64 {
	return uint64(w.Count) + uint64(w.Quality) + uint64(w.Consistency) + uint64(w.PeerReview)
}

// Validate checks that the weights add up to 100.
func (w ReputationWeights) Validate() error {
	if sum := w.Sum(); sum != 100 {
		return ErrInvalidWeights.Wrapf("reputation weights sum to %d", sum)
	}
	return nil
}

// RoleParams holds the staking terms of one role.
type RoleParams struct {
	MinStake   math.Int      `json:"min_stake"`
	MinLock    time.Duration `json:"min_lock"`
	RewardRate uint32        `json:"reward_rate"` // annual percent
}

// ProposalRule holds the approval rule of one proposal category.
type ProposalRule struct {
	MinDeliberation time.Duration  `json:"min_deliberation"`
	Threshold       math.LegacyDec `json:"threshold"` // percent of for+against
	Strict          bool           `json:"strict"`    // approval must exceed rather than reach the threshold
	EarlyExecution  bool           `json:"early_execution"` // pass before the window ends once "for" spend backs Threshold percent of stake
}

// Params defines the merit module parameters.
type Params struct {
	BondDenom string `json:"bond_denom"`

	Roles               map[Role]RoleParams               `json:"roles"`
	CategoryRewardRates map[Category]uint32               `json:"category_reward_rates"`
	ProposalRules       map[ProposalCategory]ProposalRule `json:"proposal_rules"`

	QualityWeights        CriteriaWeights   `json:"quality_weights"`
	ImpactWeights         CriteriaWeights   `json:"impact_weights"`
	ReputationWeights     ReputationWeights `json:"reputation_weights"`
	ReputationDecayPerDay math.LegacyDec    `json:"reputation_decay_per_day"`

	MinReviewers            uint32         `json:"min_reviewers"`
	MaxReviewers            uint32         `json:"max_reviewers"`
	ApprovalThreshold       math.LegacyDec `json:"approval_threshold"`
	ReviewWindow            time.Duration  `json:"review_window"` // zero disables the window
	RequireContributorStake bool           `json:"require_contributor_stake"`

	InitialPerformance uint32 `json:"initial_performance"`
	SlashingRate       uint32 `json:"slashing_rate"` // percent of position amount
	SlashPenalty       uint32 `json:"slash_penalty"` // performance points
	DowntimeThreshold  uint32 `json:"downtime_threshold"`
}

// DefaultParams returns the default module parameters
func DefaultParams() Params {
	return Params{
		BondDenom: DefaultBondDenom,
		Roles: map[Role]RoleParams{
			RoleValidator:  {MinStake: math.NewInt(10_000), MinLock: 30 * Day, RewardRate: 12},
			RoleAITraining: {MinStake: math.NewInt(500), MinLock: 7 * Day, RewardRate: 8},
			RoleData:       {MinStake: math.NewInt(100), MinLock: 7 * Day, RewardRate: 6},
			RoleCompute:    {MinStake: math.NewInt(1_000), MinLock: 7 * Day, RewardRate: 7},
			RoleResearch:   {MinStake: math.NewInt(200), MinLock: 7 * Day, RewardRate: 10},
		},
		CategoryRewardRates: map[Category]uint32{
			CategoryAITraining: 8,
			CategoryData:       6,
			CategoryCompute:    7,
			CategoryResearch:   10,
			CategoryGovernance: 5,
		},
		ProposalRules: map[ProposalCategory]ProposalRule{
			ProposalStandard:       {MinDeliberation: 3 * Day, Threshold: math.LegacyNewDec(50), Strict: true},
			ProposalConstitutional: {MinDeliberation: 14 * Day, Threshold: math.LegacyNewDec(67)},
			ProposalEmergency:      {MinDeliberation: Day, Threshold: math.LegacyNewDec(80), EarlyExecution: true},
		},
		QualityWeights:          CriteriaWeights{Technical: 30, Innovation: 25, Impact: 20, Documentation: 15, Community: 10},
		ImpactWeights:           CriteriaWeights{Impact: 60, Community: 25, Innovation: 15},
		ReputationWeights:       ReputationWeights{Count: 20, Quality: 40, Consistency: 25, PeerReview: 15},
		ReputationDecayPerDay:   math.LegacyOneDec(),
		MinReviewers:            3,
		MaxReviewers:            7,
		ApprovalThreshold:       math.LegacyNewDec(70),
		RequireContributorStake: true,
		InitialPerformance:      100,
		SlashingRate:            5,
		SlashPenalty:            10,
		DowntimeThreshold:       50,
	}
}

// RoleTerms returns the staking terms of role r.
func (p Params) RoleTerms(r Role) (RoleParams, error) {
	terms, ok := p.Roles[r]
	if !ok {
		return RoleParams{}, ErrInvalidRole.Wrapf("no staking terms for role %q", r)
	}
	return terms, nil
}

// CategoryRate returns the reward rate of category c.
func (p Params) CategoryRate(c Category) (uint32, error) {
	rate, ok := p.CategoryRewardRates[c]
	if !ok {
		return 0, ErrInvalidCategory.Wrapf("no reward rate for category %q", c)
	}
	return rate, nil
}

// MaxCategoryRate returns the highest configured category reward rate.
func (p Params) MaxCategoryRate() uint32 {
	var max uint32
	for _, c := range AllCategories {
		if rate := p.CategoryRewardRates[c]; rate > max {
			max = rate
		}
	}
	return max
}

// Rule returns the approval rule of category c.
func (p Params) Rule(c ProposalCategory) (ProposalRule, error) {
	rule, ok := p.ProposalRules[c]
	if !ok {
		return ProposalRule{}, ErrInvalidProposal.Wrapf("no rule for proposal category %q", c)
	}
	return rule, nil
}

// Validate performs basic validation of the parameters
func (p Params) Validate() error {
	if p.BondDenom == "" {
		return ErrInvalidParams.Wrap("bond denom cannot be empty")
	}

	for _, r := range AllRoles {
		terms, ok := p.Roles[r]
		if !ok {
			return ErrInvalidParams.Wrapf("missing staking terms for role %s", r)
		}
		if terms.MinStake.IsNil() || !terms.MinStake.IsPositive() {
			return ErrInvalidParams.Wrapf("role %s: min stake must be positive", r)
		}
		if terms.MinLock <= 0 {
			return ErrInvalidParams.Wrapf("role %s: min lock must be positive", r)
		}
		if terms.RewardRate > 100 {
			return ErrInvalidParams.Wrapf("role %s: reward rate %d exceeds 100", r, terms.RewardRate)
		}
	}

	for _, c := range AllCategories {
		rate, ok := p.CategoryRewardRates[c]
		if !ok {
			return ErrInvalidParams.Wrapf("missing reward rate for category %s", c)
		}
		if rate > 100 {
			return ErrInvalidParams.Wrapf("category %s: reward rate %d exceeds 100", c, rate)
		}
	}

	for _, c := range []ProposalCategory{ProposalStandard, ProposalConstitutional, ProposalEmergency} {
		rule, ok := p.ProposalRules[c]
		if !ok {
			return ErrInvalidParams.Wrapf("missing rule for proposal category %s", c)
		}
		if rule.MinDeliberation < 0 {
			return ErrInvalidParams.Wrapf("proposal category %s: negative deliberation", c)
		}
		if err := validatePercent(rule.Threshold); err != nil {
			return ErrInvalidParams.Wrapf("proposal category %s: threshold %v", c, err)
		}
	}

	if err := p.QualityWeights.Validate(); err != nil {
		return err
	}
	if err := p.ImpactWeights.Validate(); err != nil {
		return err
	}
	if err := p.ReputationWeights.Validate(); err != nil {
		return err
	}

	if p.ReputationDecayPerDay.IsNil() || p.ReputationDecayPerDay.IsNegative() {
		return ErrInvalidParams.Wrap("reputation decay must be non-negative")
	}
	if p.MinReviewers == 0 {
		return ErrInvalidParams.Wrap("min reviewers must be at least 1")
	}
	if p.MaxReviewers < p.MinReviewers {
		return ErrInvalidParams.Wrapf("max reviewers %d below min reviewers %d", p.MaxReviewers, p.MinReviewers)
	}
	if err := validatePercent(p.ApprovalThreshold); err != nil {
		return ErrInvalidParams.Wrapf("approval threshold %v", err)
	}
	if p.ReviewWindow < 0 {
		return ErrInvalidParams.Wrap("review window cannot be negative")
	}
	if p.InitialPerformance > 100 {
		return ErrInvalidParams.Wrapf("initial performance %d exceeds 100", p.InitialPerformance)
	}
	if p.SlashingRate > 100 {
		return ErrInvalidParams.Wrapf("slashing rate %d exceeds 100", p.SlashingRate)
	}
	if p.SlashPenalty > 100 {
		return ErrInvalidParams.Wrapf("slash penalty %d exceeds 100", p.SlashPenalty)
	}
	if p.DowntimeThreshold > 100 {
		return ErrInvalidParams.Wrapf("downtime threshold %d exceeds 100", p.DowntimeThreshold)
	}

	return nil
}

func validatePercent(d math.LegacyDec) error {
	if d.IsNil() {
		return fmt.Errorf("is nil")
	}
	if d.IsNegative() || d.GT(math.LegacyNewDec(100)) {
		return fmt.Errorf("%s outside [0,100]", d)
	}
	return nil
}

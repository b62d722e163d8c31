package types

import (
	"fmt"
	"strings"
)

// Role is the purpose a stake position was opened for.
type Role string

const (
	RoleValidator  Role = "validator"
	RoleAITraining Role = "ai_training"
	RoleData       Role = "data"
	RoleCompute    Role = "compute"
	RoleResearch   Role = "research"
)

// AllRoles lists every stakeable role in a stable order.
var AllRoles = []Role{RoleValidator, RoleAITraining, RoleData, RoleCompute, RoleResearch}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsContributor reports whether r is one of the four contributor categories.
func (r Role) IsContributor() bool {
	return r.IsValid() && r != RoleValidator
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrInvalidRole.Wrapf("unknown role %q", s)
	}
	return r, nil
}

// Category classifies a contribution and selects its reward rate.
type Category string

const (
	CategoryAITraining Category = "ai_training"
	CategoryData       Category = "data"
	CategoryCompute    Category = "compute"
	CategoryResearch   Category = "research"
	CategoryGovernance Category = "governance"
)

// AllCategories lists every contribution category in a stable order.
var AllCategories = []Category{CategoryAITraining, CategoryData, CategoryCompute, CategoryResearch, CategoryGovernance}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCategory.Wrapf("unknown category %q", s)
	}
	return c, nil
}

// ContributionStatus is the lifecycle state of a contribution.
type ContributionStatus uint8

const (
	StatusPending ContributionStatus = iota
	StatusUnderReview
	StatusApproved
	StatusRejected
	StatusRewarded
)

func (s ContributionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUnderReview:
		return "under_review"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusRewarded:
		return "rewarded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// IsTerminal reports whether no further transition can leave s.
func (s ContributionStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusRewarded
}

// AcceptsReviews reports whether reviews may still be recorded in state s.
func (s ContributionStatus) AcceptsReviews() bool {
	return s == StatusPending || s == StatusUnderReview
}

// CanTransitionTo enforces the one-directional contribution state machine.
func (s ContributionStatus) CanTransitionTo(next ContributionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusUnderReview || next == StatusRejected
	case StatusUnderReview:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusRewarded
	default:
		return false
	}
}

// ProposalCategory selects the approval threshold and minimum deliberation.
type ProposalCategory string

const (
	ProposalStandard       ProposalCategory = "standard"
	ProposalConstitutional ProposalCategory = "constitutional"
	ProposalEmergency      ProposalCategory = "emergency"
)

// IsValid reports whether c is a known proposal category.
func (c ProposalCategory) IsValid() bool {
	return c == ProposalStandard || c == ProposalConstitutional || c == ProposalEmergency
}

// ParseProposalCategory parses a proposal category name.
func ParseProposalCategory(s string) (ProposalCategory, error) {
	c := ProposalCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidProposal.Wrapf("unknown proposal category %q", s)
	}
	return c, nil
}

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus uint8

const (
	ProposalStatusVoting ProposalStatus = iota
	ProposalStatusPassed
	ProposalStatusRejected
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusVoting:
		return "voting"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// VoteOption is the direction of a vote.
type VoteOption string

const (
	VoteFor     VoteOption = "for"
	VoteAgainst VoteOption = "against"
	VoteAbstain VoteOption = "abstain"
)

// IsValid reports whether o is a known vote option.
func (o VoteOption) IsValid() bool {
	return o == VoteFor || o == VoteAgainst || o == VoteAbstain
}

// ParseVoteOption parses a vote option name.
func ParseVoteOption(s string) (VoteOption, error) {
	o := VoteOption(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", ErrInvalidVote.Wrapf("unknown vote option %q", s)
	}
	return o, nil
}

var contributionStatusByName = map[string]ContributionStatus{
	"pending":      StatusPending,
	"under_review": StatusUnderReview,
	"approved":     StatusApproved,
	"rejected":     StatusRejected,
	"rewarded":     StatusRewarded,
}

// MarshalText encodes the status by name so exported state stays readable.
func (s ContributionStatus) MarshalText() ([]byte, error) {
	if _, ok := contributionStatusByName[s.String()]; !ok {
		return nil, fmt.Errorf("invalid contribution status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *ContributionStatus) UnmarshalText(text []byte) error {
	v, ok := contributionStatusByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid contribution status %q", string(text))
	}
	*s = v
	return nil
}

var proposalStatusByName = map[string]ProposalStatus{
	"voting":   ProposalStatusVoting,
	"passed":   ProposalStatusPassed,
	"rejected": ProposalStatusRejected,
}

// MarshalText encodes the status by name.
func (s ProposalStatus) MarshalText() ([]byte, error) {
	if _, ok := proposalStatusByName[s.String()]; !ok {
		return nil, fmt.Errorf("invalid proposal status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *ProposalStatus) UnmarshalText(text []byte) error {
	v, ok := proposalStatusByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid proposal status %q", string(text))
	}
	*s = v
	return nil
}

package types

// Event types for the merit module
// All event types use lowercase with underscore separator
const (
	EventTypeContributionSubmitted      = "contribution_submitted"
	EventTypeContributionReviewed       = "contribution_reviewed"
	EventTypeContributionApproved       = "contribution_approved"
	EventTypeContributionRejected       = "contribution_rejected"
	EventTypeContributionRewardDeferred = "contribution_reward_deferred"
	EventTypeContributionRewarded       = "contribution_rewarded"

	EventTypeStaked         = "staked"
	EventTypeUnstaked       = "unstaked"
	EventTypeRewardsClaimed = "rewards_claimed"

	EventTypeValidatorSlashed     = "validator_slashed"
	EventTypeValidatorPerformance = "validator_performance_updated"
	EventTypeValidatorRevoked     = "validator_revoked"

	EventTypeProposalCreated   = "proposal_created"
	EventTypeQuadraticVoteCast = "quadratic_vote_cast"
	EventTypeProposalFinalized = "proposal_finalized"

	EventTypeParamsUpdated = "merit_params_updated"
)

// Event attribute keys for the merit module
const (
	AttributeKeyID          = "id"
	AttributeKeyOwner       = "owner"
	AttributeKeyCategory    = "category"
	AttributeKeyValue       = "value"
	AttributeKeyReviewer    = "reviewer"
	AttributeKeyQuality     = "quality"
	AttributeKeyImpact      = "impact"
	AttributeKeyReward      = "reward"
	AttributeKeyReason      = "reason"
	AttributeKeyAccount     = "account"
	AttributeKeyRole        = "role"
	AttributeKeyAmount      = "amount"
	AttributeKeyLock        = "lock_duration"
	AttributeKeyRewards     = "rewards"
	AttributeKeyValidator   = "validator"
	AttributeKeyPerformance = "performance"
	AttributeKeyProposal    = "proposal"
	AttributeKeyVoter       = "voter"
	AttributeKeyVotes       = "votes"
	AttributeKeyOption      = "option"
	AttributeKeyCost        = "cost"
	AttributeKeyStatus      = "status"
	AttributeKeyApproval    = "approval"
	AttributeKeyAuthority   = "authority"
)

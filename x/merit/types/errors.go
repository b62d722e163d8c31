package types

import (
	sdkerrors "cosmossdk.io/errors"
)

// Merit module sentinel errors.
//
// Validation errors (2-19) and state errors (20-39) never change state.
// Resource errors (40-49) leave the ledger in a retryable intermediate state.
// Invariant violations (50+) abort the enclosing transaction.
var (
	// Validation errors
	ErrInsufficientAmount  = sdkerrors.Register(ModuleName, 2, "amount below role minimum")
	ErrLockTooShort        = sdkerrors.Register(ModuleName, 3, "lock duration below role floor")
	ErrInvalidRole         = sdkerrors.Register(ModuleName, 4, "invalid stake role")
	ErrInvalidCategory     = sdkerrors.Register(ModuleName, 5, "invalid contribution category")
	ErrInvalidCriteria     = sdkerrors.Register(ModuleName, 6, "malformed review criteria")
	ErrInvalidWeights      = sdkerrors.Register(ModuleName, 7, "scoring weights must sum to 100")
	ErrDuplicateReview     = sdkerrors.Register(ModuleName, 8, "reviewer already reviewed this contribution")
	ErrSelfReview          = sdkerrors.Register(ModuleName, 9, "reviewer cannot review own contribution")
	ErrVotingPowerExceeded = sdkerrors.Register(ModuleName, 10, "quadratic vote cost exceeds available voting power")
	ErrInvalidProof        = sdkerrors.Register(ModuleName, 11, "invalid contribution proof")
	ErrInvalidAmount       = sdkerrors.Register(ModuleName, 12, "invalid amount")
	ErrInvalidParams       = sdkerrors.Register(ModuleName, 13, "invalid module parameters")
	ErrInvalidVote         = sdkerrors.Register(ModuleName, 14, "invalid vote")
	ErrInvalidProposal     = sdkerrors.Register(ModuleName, 15, "invalid proposal")
	ErrInvalidPerformance  = sdkerrors.Register(ModuleName, 16, "invalid performance report")
	ErrUnauthorized        = sdkerrors.Register(ModuleName, 17, "unauthorized operation")
	ErrConflictingVote     = sdkerrors.Register(ModuleName, 18, "vote option differs from earlier vote")
	ErrInvalidGenesis      = sdkerrors.Register(ModuleName, 19, "invalid genesis state")

	// State errors
	ErrAlreadyStaked         = sdkerrors.Register(ModuleName, 20, "account already has an active stake position")
	ErrNotActive             = sdkerrors.Register(ModuleName, 21, "no active stake position")
	ErrLockNotExpired        = sdkerrors.Register(ModuleName, 22, "stake lock has not expired")
	ErrContributionNotFound  = sdkerrors.Register(ModuleName, 23, "contribution not found")
	ErrReviewClosed          = sdkerrors.Register(ModuleName, 24, "contribution no longer accepts reviews")
	ErrNotValidator          = sdkerrors.Register(ModuleName, 25, "account is not an active validator")
	ErrProposalNotFound      = sdkerrors.Register(ModuleName, 26, "proposal not found")
	ErrVotingClosed          = sdkerrors.Register(ModuleName, 27, "proposal is not accepting votes")
	ErrDeliberationPending   = sdkerrors.Register(ModuleName, 28, "deliberation period has not elapsed")
	ErrNotApproved           = sdkerrors.Register(ModuleName, 29, "contribution is not awaiting a reward")
	ErrContributorNotStaked  = sdkerrors.Register(ModuleName, 30, "contributor has no active contributor stake")
	ErrReviewWindowClosed    = sdkerrors.Register(ModuleName, 31, "review window has closed")
	ErrProposalFinalized     = sdkerrors.Register(ModuleName, 32, "proposal already finalized")
	ErrValidatorNotFound     = sdkerrors.Register(ModuleName, 33, "validator record not found")
	ErrProfileNotFound       = sdkerrors.Register(ModuleName, 34, "contributor profile not found")
	ErrReviewNotFound        = sdkerrors.Register(ModuleName, 35, "review not found")
	ErrInvalidStatusChange   = sdkerrors.Register(ModuleName, 36, "invalid contribution status transition")
	ErrPositionNotFound      = sdkerrors.Register(ModuleName, 37, "stake position not found")
	ErrApprovalThresholdMiss = sdkerrors.Register(ModuleName, 38, "proposal approval below threshold")

	// Resource errors
	ErrTreasuryTransfer = sdkerrors.Register(ModuleName, 40, "treasury transfer failed")
	ErrOracleFailure    = sdkerrors.Register(ModuleName, 41, "proof oracle unavailable")

	// Invariant violations
	ErrInvariantViolation = sdkerrors.Register(ModuleName, 50, "ledger invariant violated")
)

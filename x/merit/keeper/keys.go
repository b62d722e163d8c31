package keeper

import (
	"encoding/binary"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}

	// PositionKeyPrefix is the prefix for the current stake position of an account
	PositionKeyPrefix = []byte{0x02}

	// ValidatorKeyPrefix is the prefix for validator records
	ValidatorKeyPrefix = []byte{0x03}

	// CheckpointKeyPrefix is the prefix for stake checkpoints.
	// Key: prefix + len-prefixed owner + unix nanos
	CheckpointKeyPrefix = []byte{0x04}

	// ContributionKeyPrefix is the prefix for contribution storage
	ContributionKeyPrefix = []byte{0x05}

	// ContributionsByOwnerPrefix indexes contributions by owner
	ContributionsByOwnerPrefix = []byte{0x06}

	// ReviewKeyPrefix is the prefix for review records.
	// Key: prefix + contribution id + len-prefixed reviewer
	ReviewKeyPrefix = []byte{0x07}

	// ProfileKeyPrefix is the prefix for contributor profiles
	ProfileKeyPrefix = []byte{0x08}

	// ProposalKeyPrefix is the prefix for proposal storage
	ProposalKeyPrefix = []byte{0x09}

	// VoteKeyPrefix is the prefix for vote records.
	// Key: prefix + proposal id + len-prefixed voter
	VoteKeyPrefix = []byte{0x0A}

	// SlashRecordKeyPrefix is the prefix for slash record storage
	SlashRecordKeyPrefix = []byte{0x0B}

	// SlashRecordsByValidatorPrefix indexes slash records by validator
	SlashRecordsByValidatorPrefix = []byte{0x0C}

	// ReviewerKeyPrefix holds accounts allow-listed as reviewers
	ReviewerKeyPrefix = []byte{0x0D}

	// OperatorKeyPrefix holds accounts allowed to slash, report performance and retry rewards
	OperatorKeyPrefix = []byte{0x0E}

	// PositionHistoryPrefix keeps closed positions.
	// Key: prefix + len-prefixed owner + close time
	PositionHistoryPrefix = []byte{0x0F}

	// SubmissionCountPrefix counts contributions submitted per owner
	SubmissionCountPrefix = []byte{0x10}

	// NextContributionIDKey is the key for the next contribution ID counter
	NextContributionIDKey = []byte{0x20}

	// NextProposalIDKey is the key for the next proposal ID counter
	NextProposalIDKey = []byte{0x21}

	// NextSlashIDKey is the key for the next slash ID counter
	NextSlashIDKey = []byte{0x22}

	// TotalStakedKey holds the sum of all active position amounts
	TotalStakedKey = []byte{0x23}

	// InsurancePoolKey holds the amount accumulated from slashing
	InsurancePoolKey = []byte{0x24}
)

func uint64Bytes(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

func timeBytes(t time.Time) []byte {
	return uint64Bytes(uint64(t.UTC().UnixNano()))
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PositionKey returns the store key for the position of owner
func PositionKey(owner sdk.AccAddress) []byte {
	return concat(PositionKeyPrefix, owner.Bytes())
}

// ValidatorKey returns the store key for a validator record
func ValidatorKey(validator sdk.AccAddress) []byte {
	return concat(ValidatorKeyPrefix, validator.Bytes())
}

// CheckpointPrefix returns the prefix of all checkpoints of owner
func CheckpointPrefix(owner sdk.AccAddress) []byte {
	return concat(CheckpointKeyPrefix, address.MustLengthPrefix(owner))
}

// CheckpointKey returns the store key for the checkpoint of owner at t
func CheckpointKey(owner sdk.AccAddress, t time.Time) []byte {
	return concat(CheckpointPrefix(owner), timeBytes(t))
}

// ContributionKey returns the store key for a contribution
func ContributionKey(id uint64) []byte {
	return concat(ContributionKeyPrefix, uint64Bytes(id))
}

// ContributionByOwnerPrefix returns the owner index prefix
func ContributionByOwnerPrefix(owner sdk.AccAddress) []byte {
	return concat(ContributionsByOwnerPrefix, address.MustLengthPrefix(owner))
}

// ContributionByOwnerKey returns the owner index key of a contribution
func ContributionByOwnerKey(owner sdk.AccAddress, id uint64) []byte {
	return concat(ContributionByOwnerPrefix(owner), uint64Bytes(id))
}

// ReviewPrefix returns the prefix of all reviews of a contribution
func ReviewPrefix(contributionID uint64) []byte {
	return concat(ReviewKeyPrefix, uint64Bytes(contributionID))
}

// ReviewKey returns the store key for the review of reviewer on a contribution
func ReviewKey(contributionID uint64, reviewer sdk.AccAddress) []byte {
	return concat(ReviewPrefix(contributionID), address.MustLengthPrefix(reviewer))
}

// ProfileKey returns the store key for a contributor profile
func ProfileKey(contributor sdk.AccAddress) []byte {
	return concat(ProfileKeyPrefix, contributor.Bytes())
}

// ProposalKey returns the store key for a proposal
func ProposalKey(id uint64) []byte {
	return concat(ProposalKeyPrefix, uint64Bytes(id))
}

// VotePrefix returns the prefix of all votes on a proposal
func VotePrefix(proposalID uint64) []byte {
	return concat(VoteKeyPrefix, uint64Bytes(proposalID))
}

// VoteKey returns the store key for the vote of voter on a proposal
func VoteKey(proposalID uint64, voter sdk.AccAddress) []byte {
	return concat(VotePrefix(proposalID), address.MustLengthPrefix(voter))
}

// SlashRecordKey returns the store key for a slash record
func SlashRecordKey(id uint64) []byte {
	return concat(SlashRecordKeyPrefix, uint64Bytes(id))
}

// SlashRecordByValidatorPrefix returns the validator index prefix
func SlashRecordByValidatorPrefix(validator sdk.AccAddress) []byte {
	return concat(SlashRecordsByValidatorPrefix, address.MustLengthPrefix(validator))
}

// SlashRecordByValidatorKey returns the validator index key of a slash record
func SlashRecordByValidatorKey(validator sdk.AccAddress, id uint64) []byte {
	return concat(SlashRecordByValidatorPrefix(validator), uint64Bytes(id))
}

// ReviewerKey returns the allow-list key of a reviewer
func ReviewerKey(reviewer sdk.AccAddress) []byte {
	return concat(ReviewerKeyPrefix, reviewer.Bytes())
}

// OperatorKey returns the allow-list key of an operator
func OperatorKey(operator sdk.AccAddress) []byte {
	return concat(OperatorKeyPrefix, operator.Bytes())
}

// PositionHistoryOwnerPrefix returns the prefix of all closed positions of owner
func PositionHistoryOwnerPrefix(owner sdk.AccAddress) []byte {
	return concat(PositionHistoryPrefix, address.MustLengthPrefix(owner))
}

// PositionHistoryKey returns the key of a closed position
func PositionHistoryKey(owner sdk.AccAddress, closedAt time.Time) []byte {
	return concat(PositionHistoryOwnerPrefix(owner), timeBytes(closedAt))
}

// SubmissionCountKey returns the key of the submission counter of owner
func SubmissionCountKey(owner sdk.AccAddress) []byte {
	return concat(SubmissionCountPrefix, owner.Bytes())
}

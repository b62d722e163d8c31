package types

import (
	"time"

	"cosmossdk.io/math"
)

var hundred = math.LegacyNewDec(100)

// AssessQuality converts review criteria into a quality score in [0,100]
// using the configured criteria weights.
func AssessQuality(c ReviewCriteria, w CriteriaWeights) (math.LegacyDec, error) {
	return weightedCriteria(c, w)
}

// AssessImpact converts review criteria into an impact score in [0,100].
func AssessImpact(c ReviewCriteria, w CriteriaWeights) (math.LegacyDec, error) {
	return weightedCriteria(c, w)
}

func weightedCriteria(c ReviewCriteria, w CriteriaWeights) (math.LegacyDec, error) {
	if err := w.Validate(); err != nil {
		return math.LegacyDec{}, err
	}
	if err := c.Validate(); err != nil {
		return math.LegacyDec{}, err
	}

	sum := uint64(c.Technical)*uint64(w.Technical) +
		uint64(c.Innovation)*uint64(w.Innovation) +
		uint64(c.Impact)*uint64(w.Impact) +
		uint64(c.Documentation)*uint64(w.Documentation) +
		uint64(c.Community)*uint64(w.Community)

	return math.LegacyNewDecFromInt(math.NewIntFromUint64(sum)).QuoInt64(100), nil
}

// CompositeScore collapses quality and impact into the single review score
// used for quorum adjudication.
func CompositeScore(quality, impact math.LegacyDec) math.LegacyDec {
	return quality.Add(impact).QuoInt64(2)
}

// CountScore maps a contribution count onto [0,100] at ten points per contribution.
func CountScore(count uint64) math.LegacyDec {
	if count >= 10 {
		return hundred
	}
	return math.LegacyNewDec(int64(count) * 10)
}

// ConsistencyScore is 100 minus the distance between the latest and the
// average quality, floored at zero.
func ConsistencyScore(latest, average math.LegacyDec) math.LegacyDec {
	return SaturatingSub(hundred, latest.Sub(average).Abs())
}

// PeerReviewScore is the share of submitted contributions that were rewarded.
func PeerReviewScore(rewarded, submitted uint64) math.LegacyDec {
	if submitted == 0 {
		return math.LegacyZeroDec()
	}
	if rewarded >= submitted {
		return hundred
	}
	return math.LegacyNewDecFromInt(math.NewIntFromUint64(rewarded)).
		MulInt64(100).
		QuoInt(math.NewIntFromUint64(submitted))
}

// AssessReputation combines the reputation components into a score in [0,100].
func AssessReputation(count uint64, avgQuality, consistency, peerReview math.LegacyDec, w ReputationWeights) (math.LegacyDec, error) {
	if err := w.Validate(); err != nil {
		return math.LegacyDec{}, err
	}
	for _, component := range []math.LegacyDec{avgQuality, consistency, peerReview} {
		if component.IsNil() || component.IsNegative() || component.GT(hundred) {
			return math.LegacyDec{}, ErrInvalidCriteria.Wrapf("reputation component %s outside [0,100]", component)
		}
	}

	score := CountScore(count).MulInt64(int64(w.Count)).
		Add(avgQuality.MulInt64(int64(w.Quality))).
		Add(consistency.MulInt64(int64(w.Consistency))).
		Add(peerReview.MulInt64(int64(w.PeerReview)))

	return score.QuoInt64(100), nil
}

// Decay lowers score by perDay for every whole day in elapsed. The result
// never drops below zero.
func Decay(score math.LegacyDec, elapsed time.Duration, perDay math.LegacyDec) math.LegacyDec {
	if elapsed < Day || perDay.IsZero() {
		return score
	}
	days := int64(elapsed / Day)
	return SaturatingSub(score, perDay.MulInt64(days))
}

// ComputeReward returns declared × rate/100 × (quality×2/100 + impact×2/100)/2,
// truncated to an integer amount.
func ComputeReward(declared math.Int, rate uint32, quality, impact math.LegacyDec) math.Int {
	if declared.IsNil() || !declared.IsPositive() {
		return math.ZeroInt()
	}
	base := math.LegacyNewDecFromInt(declared).MulInt64(int64(rate)).QuoInt64(100)
	qualityMultiplier := quality.MulInt64(2).QuoInt64(100)
	impactMultiplier := impact.MulInt64(2).QuoInt64(100)
	return base.Mul(qualityMultiplier.Add(impactMultiplier)).QuoInt64(2).TruncateInt()
}

// RewardUpperBound is the largest reward any contribution of declared value
// can earn: declared × 2 × maxRate/100.
func RewardUpperBound(declared math.Int, maxRate uint32) math.Int {
	return declared.MulRaw(2 * int64(maxRate)).QuoRaw(100)
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func SaturatingSub(a, b math.LegacyDec) math.LegacyDec {
	if b.GTE(a) {
		return math.LegacyZeroDec()
	}
	return a.Sub(b)
}

// SaturatingSubUint32 returns a-b, or zero when b exceeds a.
func SaturatingSubUint32(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

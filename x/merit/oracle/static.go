package oracle

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

var _ types.ProofVerifier = StaticVerifier{}

// StaticVerifier answers every proof the same way. Devnets and tests use it
// in place of an attestation service.
type StaticVerifier struct {
	Accept bool
}

// VerifyProof implements types.ProofVerifier. The quality hint is the one the
// proof claims.
func (v StaticVerifier) VerifyProof(_ context.Context, _ sdk.AccAddress, proof types.Proof) (types.Verification, error) {
	result := types.Verification{Valid: v.Accept}
	if v.Accept && proof.ClaimedQuality != nil {
		hint := math.LegacyNewDec(int64(*proof.ClaimedQuality))
		result.QualityHint = &hint
	}
	return result, nil
}

// VerifierFunc adapts a function to types.ProofVerifier.
type VerifierFunc func(ctx context.Context, owner sdk.AccAddress, proof types.Proof) (types.Verification, error)

// VerifyProof implements types.ProofVerifier.
func (f VerifierFunc) VerifyProof(ctx context.Context, owner sdk.AccAddress, proof types.Proof) (types.Verification, error) {
	return f(ctx, owner, proof)
}

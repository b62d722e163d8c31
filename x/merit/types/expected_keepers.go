package types

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// BankKeeper is the treasury/token balance store the engine moves funds
// through. The Cosmos SDK bank keeper satisfies it.
type BankKeeper interface {
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
	SendCoins(ctx context.Context, fromAddr sdk.AccAddress, toAddr sdk.AccAddress, amt sdk.Coins) error
}

// Verification is the result of checking a contribution proof.
type Verification struct {
	Valid       bool
	QualityHint *math.LegacyDec
}

// ProofVerifier is the external proof/verification oracle. An error means the
// oracle could not answer; an invalid proof is reported through Valid=false.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, owner sdk.AccAddress, proof Proof) (Verification, error)
}

// Capabilities decides who may call privileged operations. Identities are
// authenticated by the transport layer before they reach the keeper.
type Capabilities interface {
	CanReview(ctx context.Context, reviewer sdk.AccAddress) bool
	CanSlash(ctx context.Context, caller sdk.AccAddress) bool
	CanReportPerformance(ctx context.Context, caller sdk.AccAddress) bool
	CanOperate(ctx context.Context, caller sdk.AccAddress) bool
}

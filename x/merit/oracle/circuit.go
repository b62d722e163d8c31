package oracle

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// ContributionCircuit attests that the holder of the proving key vouched for
// a contribution proof submitted by a given owner with a given quality hint.
//
// Public inputs bind the attestation to the proof digest, the submitting
// account and the claimed quality, so an attestation cannot be replayed for
// another contribution or another owner.
type ContributionCircuit struct {
	Digest      frontend.Variable `gnark:",public"`
	Owner       frontend.Variable `gnark:",public"`
	QualityHint frontend.Variable `gnark:",public"`

	Blinding frontend.Variable `gnark:",private"`
}

// Define implements frontend.Circuit.
func (c *ContributionCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.QualityHint, 100)
	api.AssertIsDifferent(c.Blinding, 0)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("failed to initialize MiMC: %w", err)
	}
	h.Write(c.Digest, c.Owner, c.QualityHint, c.Blinding)
	api.AssertIsDifferent(h.Sum(), 0)
	return nil
}

// publicInputs derives the public circuit inputs for a proof submitted by owner.
func publicInputs(owner sdk.AccAddress, proof types.Proof) (digest, ownerField, quality *big.Int, err error) {
	raw, err := proof.Digest()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("digest proof reference: %w", err)
	}
	modulus := ecc.BN254.ScalarField()

	digest = new(big.Int).SetBytes(raw)
	digest.Mod(digest, modulus)

	ownerField = new(big.Int).SetBytes(owner.Bytes())
	ownerField.Mod(ownerField, modulus)

	quality = new(big.Int)
	if proof.ClaimedQuality != nil {
		quality.SetUint64(uint64(*proof.ClaimedQuality))
	}
	return digest, ownerField, quality, nil
}

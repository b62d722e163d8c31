package oracle

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"cosmossdk.io/math"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

var _ types.ProofVerifier = (*Groth16Verifier)(nil)

// Groth16Verifier checks contribution attestations against a BN254 Groth16
// verifying key. A missing, malformed or failing attestation makes the proof
// invalid; only internal errors are reported as oracle failures.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

// NewGroth16Verifier wraps an existing verifying key.
func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// LoadGroth16Verifier reads a serialized verifying key.
func LoadGroth16Verifier(r io.Reader) (*Groth16Verifier, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return &Groth16Verifier{vk: vk}, nil
}

// WriteVerifyingKey serializes the verifying key.
func (v *Groth16Verifier) WriteVerifyingKey(w io.Writer) error {
	_, err := v.vk.WriteTo(w)
	return err
}

// VerifyProof implements types.ProofVerifier.
func (v *Groth16Verifier) VerifyProof(_ context.Context, owner sdk.AccAddress, proof types.Proof) (types.Verification, error) {
	if len(proof.Attestation) == 0 {
		return types.Verification{Valid: false}, nil
	}

	digest, ownerField, quality, err := publicInputs(owner, proof)
	if err != nil {
		return types.Verification{}, err
	}

	zkProof := groth16.NewProof(ecc.BN254)
	if _, err := zkProof.ReadFrom(bytes.NewReader(proof.Attestation)); err != nil {
		return types.Verification{Valid: false}, nil
	}

	assignment := &ContributionCircuit{
		Digest:      digest,
		Owner:       ownerField,
		QualityHint: quality,
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return types.Verification{}, fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(zkProof, v.vk, publicWitness); err != nil {
		return types.Verification{Valid: false}, nil
	}

	result := types.Verification{Valid: true}
	if proof.ClaimedQuality != nil {
		hint := math.LegacyNewDec(int64(*proof.ClaimedQuality))
		result.QualityHint = &hint
	}
	return result, nil
}

// Prover produces attestations for ContributionCircuit. It holds the proving
// key and belongs to the attesting service, not to the ledger.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// Setup compiles the contribution circuit and runs a Groth16 setup. The
// returned verifier and prover share one key pair.
func Setup() (*Groth16Verifier, *Prover, error) {
	var circuit ContributionCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, nil, fmt.Errorf("compile contribution circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Groth16Verifier{vk: vk}, &Prover{ccs: ccs, pk: pk}, nil
}

// Attest proves proof on behalf of owner and returns the serialized
// attestation to place in Proof.Attestation.
func (p *Prover) Attest(owner sdk.AccAddress, proof types.Proof) ([]byte, error) {
	digest, ownerField, quality, err := publicInputs(owner, proof)
	if err != nil {
		return nil, err
	}
	blinding, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("sample blinding: %w", err)
	}
	if blinding.Sign() == 0 {
		blinding = big.NewInt(1)
	}

	assignment := &ContributionCircuit{
		Digest:      digest,
		Owner:       ownerField,
		QualityHint: quality,
		Blinding:    blinding,
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	zkProof, err := groth16.Prove(p.ccs, p.pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := zkProof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTo serializes the constraint system followed by the proving key.
func (p *Prover) WriteTo(w io.Writer) (int64, error) {
	n, err := p.ccs.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("write constraint system: %w", err)
	}
	m, err := p.pk.WriteTo(w)
	if err != nil {
		return n + m, fmt.Errorf("write proving key: %w", err)
	}
	return n + m, nil
}

// LoadProver reads a prover written by Prover.WriteTo.
func LoadProver(r io.Reader) (*Prover, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read constraint system: %w", err)
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read proving key: %w", err)
	}
	return &Prover{ccs: ccs, pk: pk}, nil
}

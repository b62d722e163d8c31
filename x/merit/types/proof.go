package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// MaxAttestationSize bounds the opaque attestation carried with a proof.
const MaxAttestationSize = 4096

// TrainingProof references a trained model and the dataset it was trained on.
type TrainingProof struct {
	ModelHash  string `json:"model_hash"`  // base58 multihash of the model weights
	DatasetCID string `json:"dataset_cid"` // content identifier of the training set
	Epochs     uint32 `json:"epochs"`
}

// Validate checks the encoded identifiers.
func (p TrainingProof) Validate() error {
	if _, err := multihash.FromB58String(p.ModelHash); err != nil {
		return ErrInvalidProof.Wrapf("model hash: %v", err)
	}
	if _, err := cid.Decode(p.DatasetCID); err != nil {
		return ErrInvalidProof.Wrapf("dataset cid: %v", err)
	}
	if p.Epochs == 0 {
		return ErrInvalidProof.Wrap("epochs must be positive")
	}
	return nil
}

// DataProof references a published dataset.
type DataProof struct {
	DatasetCID string `json:"dataset_cid"`
	Records    uint64 `json:"records"`
}

// Validate checks the encoded identifiers.
func (p DataProof) Validate() error {
	if _, err := cid.Decode(p.DatasetCID); err != nil {
		return ErrInvalidProof.Wrapf("dataset cid: %v", err)
	}
	if p.Records == 0 {
		return ErrInvalidProof.Wrap("records must be positive")
	}
	return nil
}

// ComputeProof references a completed compute job.
type ComputeProof struct {
	JobID    string `json:"job_id"`
	GPUHours uint64 `json:"gpu_hours"`
}

// Validate checks the encoded identifiers.
func (p ComputeProof) Validate() error {
	if _, err := uuid.Parse(p.JobID); err != nil {
		return ErrInvalidProof.Wrapf("job id: %v", err)
	}
	if p.GPUHours == 0 {
		return ErrInvalidProof.Wrap("gpu hours must be positive")
	}
	return nil
}

// ResearchProof references a published paper.
type ResearchProof struct {
	PaperCID string `json:"paper_cid"`
	DOI      string `json:"doi,omitempty"`
}

// Validate checks the encoded identifiers.
func (p ResearchProof) Validate() error {
	if _, err := cid.Decode(p.PaperCID); err != nil {
		return ErrInvalidProof.Wrapf("paper cid: %v", err)
	}
	if p.DOI != "" && !strings.HasPrefix(p.DOI, "10.") {
		return ErrInvalidProof.Wrapf("doi %q must start with 10.", p.DOI)
	}
	return nil
}

// GovernanceProof references the proposal the governance work was done for.
type GovernanceProof struct {
	ProposalID uint64 `json:"proposal_id"`
}

// Validate checks the referenced proposal id.
func (p GovernanceProof) Validate() error {
	if p.ProposalID == 0 {
		return ErrInvalidProof.Wrap("proposal id must be positive")
	}
	return nil
}

// Proof is the decoded evidence for a contribution. Exactly one of the
// category payloads is set and it always matches Category.
type Proof struct {
	Category   Category         `json:"category"`
	Training   *TrainingProof   `json:"training,omitempty"`
	Data       *DataProof       `json:"data,omitempty"`
	Compute    *ComputeProof    `json:"compute,omitempty"`
	Research   *ResearchProof   `json:"research,omitempty"`
	Governance *GovernanceProof `json:"governance,omitempty"`

	// Attestation is the serialized zero-knowledge proof checked by the oracle.
	Attestation []byte `json:"attestation,omitempty"`
	// ClaimedQuality is the quality hint the attestation commits to.
	ClaimedQuality *uint32 `json:"claimed_quality,omitempty"`
}

// Validate checks that exactly the payload of Category is present and valid.
func (p Proof) Validate() error {
	if !p.Category.IsValid() {
		return ErrInvalidCategory.Wrapf("proof category %q", p.Category)
	}

	set := 0
	for _, present := range []bool{p.Training != nil, p.Data != nil, p.Compute != nil, p.Research != nil, p.Governance != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidProof.Wrapf("expected exactly one payload, found %d", set)
	}

	if len(p.Attestation) > MaxAttestationSize {
		return ErrInvalidProof.Wrapf("attestation of %d bytes exceeds %d", len(p.Attestation), MaxAttestationSize)
	}
	if p.ClaimedQuality != nil && *p.ClaimedQuality > 100 {
		return ErrInvalidProof.Wrapf("claimed quality %d exceeds 100", *p.ClaimedQuality)
	}

	switch p.Category {
	case CategoryAITraining:
		if p.Training == nil {
			return ErrInvalidProof.Wrap("missing training payload")
		}
		return p.Training.Validate()
	case CategoryData:
		if p.Data == nil {
			return ErrInvalidProof.Wrap("missing data payload")
		}
		return p.Data.Validate()
	case CategoryCompute:
		if p.Compute == nil {
			return ErrInvalidProof.Wrap("missing compute payload")
		}
		return p.Compute.Validate()
	case CategoryResearch:
		if p.Research == nil {
			return ErrInvalidProof.Wrap("missing research payload")
		}
		return p.Research.Validate()
	default:
		if p.Governance == nil {
			return ErrInvalidProof.Wrap("missing governance payload")
		}
		return p.Governance.Validate()
	}
}

// Reference returns the canonical reference string of the proof payload.
func (p Proof) Reference() string {
	switch {
	case p.Training != nil:
		return fmt.Sprintf("%s:%s:%s:%d", p.Category, p.Training.ModelHash, p.Training.DatasetCID, p.Training.Epochs)
	case p.Data != nil:
		return fmt.Sprintf("%s:%s:%d", p.Category, p.Data.DatasetCID, p.Data.Records)
	case p.Compute != nil:
		return fmt.Sprintf("%s:%s:%d", p.Category, p.Compute.JobID, p.Compute.GPUHours)
	case p.Research != nil:
		return fmt.Sprintf("%s:%s:%s", p.Category, p.Research.PaperCID, p.Research.DOI)
	case p.Governance != nil:
		return fmt.Sprintf("%s:%s", p.Category, strconv.FormatUint(p.Governance.ProposalID, 10))
	default:
		return string(p.Category)
	}
}

// Digest returns the SHA2-256 digest of the proof reference.
func (p Proof) Digest() ([]byte, error) {
	mh, err := multihash.Sum([]byte(p.Reference()), multihash.SHA2_256, -1)
	if err != nil {
		return nil, err
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return nil, err
	}
	return decoded.Digest, nil
}

type proofEnvelope struct {
	Payload        json.RawMessage `json:"payload"`
	Attestation    []byte          `json:"attestation,omitempty"`
	ClaimedQuality *uint32         `json:"claimed_quality,omitempty"`
}

// DecodeProof decodes the raw proof envelope submitted for a contribution of
// the given category. Unknown fields are rejected.
func DecodeProof(category Category, raw []byte) (Proof, error) {
	if !category.IsValid() {
		return Proof{}, ErrInvalidCategory.Wrapf("%q", category)
	}

	var env proofEnvelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return Proof{}, ErrInvalidProof.Wrapf("envelope: %v", err)
	}
	if len(env.Payload) == 0 {
		return Proof{}, ErrInvalidProof.Wrap("missing payload")
	}

	proof := Proof{
		Category:       category,
		Attestation:    env.Attestation,
		ClaimedQuality: env.ClaimedQuality,
	}

	var err error
	switch category {
	case CategoryAITraining:
		proof.Training = new(TrainingProof)
		err = strictUnmarshal(env.Payload, proof.Training)
	case CategoryData:
		proof.Data = new(DataProof)
		err = strictUnmarshal(env.Payload, proof.Data)
	case CategoryCompute:
		proof.Compute = new(ComputeProof)
		err = strictUnmarshal(env.Payload, proof.Compute)
	case CategoryResearch:
		proof.Research = new(ResearchProof)
		err = strictUnmarshal(env.Payload, proof.Research)
	case CategoryGovernance:
		proof.Governance = new(GovernanceProof)
		err = strictUnmarshal(env.Payload, proof.Governance)
	}
	if err != nil {
		return Proof{}, ErrInvalidProof.Wrapf("%s payload: %v", category, err)
	}

	if err := proof.Validate(); err != nil {
		return Proof{}, err
	}
	return proof, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package keeper

import (
	"github.com/paw-chain/merit/x/merit/types"
)

// Identifiers that pass proof validation.
const (
	SampleCIDv0     = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	SampleCIDv1     = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
	SampleModelHash = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	SampleJobID     = "123e4567-e89b-12d3-a456-426614174000"
)

// SampleProof returns a valid proof for category.
func SampleProof(category types.Category) types.Proof {
	proof := types.Proof{Category: category}
	switch category {
	case types.CategoryAITraining:
		proof.Training = &types.TrainingProof{ModelHash: SampleModelHash, DatasetCID: SampleCIDv1, Epochs: 10}
	case types.CategoryData:
		proof.Data = &types.DataProof{DatasetCID: SampleCIDv0, Records: 1000}
	case types.CategoryCompute:
		proof.Compute = &types.ComputeProof{JobID: SampleJobID, GPUHours: 12}
	case types.CategoryResearch:
		proof.Research = &types.ResearchProof{PaperCID: SampleCIDv1, DOI: "10.1000/merit.1"}
	case types.CategoryGovernance:
		proof.Governance = &types.GovernanceProof{ProposalID: 1}
	}
	return proof
}

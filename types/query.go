package types

import "strconv"

// ABCI query paths served by the chain application.
const (
	QueryGovParams       = "/gov/params/"
	QueryProposal        = "/gov/proposal/"
	QueryAccount         = "/accounts/"
	QueryAllowList       = "/inference/training_allow_list/"
	QueryMLNodeVersion   = "/inference/mlnode_version/"
	QueryInferenceRoute  = "/inference/route/"
	QueryAppliedUpgrade  = "/upgrade/applied/"
	QueryUpgradePlan     = "/upgrade/plan/"
	QueryCodeNotFound    = 404
	DefaultMLNodeVersion = "v3.0.8"
)

type Account struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type MLNodeVersion struct {
	CurrentVersion string `json:"current_version"`
}

// InferenceRoute is the network segment inference requests are currently served from.
type InferenceRoute struct {
	Segment string `json:"segment"`
	Version string `json:"version"`
}

type AppliedUpgrade struct {
	Name   string `json:"name"`
	Height uint64 `json:"height"`
}

// ProposalQueryData encodes a proposal id for QueryProposal.
func ProposalQueryData(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

func ParseProposalQueryData(data []byte) (uint64, error) {
	return strconv.ParseUint(string(data), 10, 64)
}

package journal

// sqlite models

type Proposal struct {
	Id              uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainId         string `json:"chain_id"`
	ProposalId      uint64 `json:"proposal_id"`
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Proposer        string `json:"proposer"`
	State           string `json:"state"`
	TargetHeight    uint64 `json:"target_height"`
	Height          uint64 `json:"height"`
	Tally           string `json:"tally"`
	CreateTimestamp int64  `json:"create_timestamp"`
	UpdateTimestamp int64  `json:"update_timestamp"`
}

type Vote struct {
	Id           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainId      string `json:"chain_id"`
	ProposalId   uint64 `json:"proposal_id"`
	Node         string `json:"node"`
	VoterAddress string `json:"voter_address"`
	Option       string `json:"option"`
	Code         uint32 `json:"code"`
	TxHash       string `json:"tx_hash"`
	Height       uint64 `json:"height"`
}

type Probe struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainId   string `json:"chain_id"`
	Node      string `json:"node"`
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	Expect    string `json:"expect"`
	Code      uint32 `json:"code"`
	Class     string `json:"class"`
	Log       string `json:"log"`
	TxHash    string `json:"tx_hash"`
	Height    uint64 `json:"height"`
	Passed    bool   `json:"passed"`
	Timestamp int64  `json:"timestamp"`
}

type Convergence struct {
	Id               uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainId          string `json:"chain_id"`
	ProposalId       uint64 `json:"proposal_id"`
	Node             string `json:"node"`
	ActivationHeight uint64 `json:"activation_height"`
	Height           uint64 `json:"height"`
	Version          string `json:"version"`
	Converged        bool   `json:"converged"`
	Error            string `json:"error"`
	Timestamp        int64  `json:"timestamp"`
}

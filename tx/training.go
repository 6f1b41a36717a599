package tx

import "fmt"

type TrainingTaskAssignee struct {
	Participant string   `json:"participant"`
	NodeIds     []string `json:"node_ids"`
}

type TrainingHardwareResources struct {
	Type  string `json:"type"`
	Count uint64 `json:"count"`
}

type TrainingDatasets struct {
	Train string `json:"train"`
	Test  string `json:"test"`
}

type TrainingConfig struct {
	Datasets TrainingDatasets `json:"datasets"`
	NumUoc   uint64           `json:"num_uoc"`
}

type TrainingTask struct {
	Id                uint64                      `json:"id"`
	RequestedBy       string                      `json:"requested_by"`
	Assigner          string                      `json:"assigner"`
	HardwareResources []TrainingHardwareResources `json:"hardware_resources"`
	Assignees         []TrainingTaskAssignee      `json:"assignees"`
}

type JoinTrainingRequest struct {
	NodeId    string `json:"node_id"`
	RunId     uint64 `json:"run_id"`
	OuterStep int32  `json:"outer_step"`
}

type SetBarrierRequest struct {
	BarrierId string `json:"barrier_id"`
	NodeId    string `json:"node_id"`
	RunId     uint64 `json:"run_id"`
	OuterStep int32  `json:"outer_step"`
}

type HeartbeatRequest struct {
	NodeId    string  `json:"node_id"`
	RunId     uint64  `json:"run_id"`
	OuterStep int32   `json:"outer_step"`
	InnerStep int32   `json:"inner_step"`
	Timestamp float64 `json:"timestamp"`
	Epoch     int32   `json:"epoch"`
	LocalRank int32   `json:"local_rank"`
}

func validateCreator(creator string) error {
	if creator == "" {
		return fmt.Errorf("%w: creator must be non-empty", ErrInvalidRequest)
	}
	return nil
}

func validateAssignees(assignees []TrainingTaskAssignee) error {
	for i, a := range assignees {
		if a.Participant == "" {
			return fmt.Errorf("%w: assignees[%d].participant must be non-empty", ErrInvalidRequest, i)
		}
		if len(a.NodeIds) == 0 {
			return fmt.Errorf("%w: assignees[%d].node_ids must be non-empty", ErrInvalidRequest, i)
		}
	}
	return nil
}

func validateHardware(resources []TrainingHardwareResources) error {
	if len(resources) == 0 {
		return fmt.Errorf("%w: hardware_resources must be non-empty", ErrInvalidRequest)
	}
	for i, r := range resources {
		if r.Type == "" || r.Count == 0 {
			return fmt.Errorf("%w: hardware_resources[%d] is incomplete", ErrInvalidRequest, i)
		}
	}
	return nil
}

func validateNode(nodeId string, runId uint64) error {
	if nodeId == "" {
		return fmt.Errorf("%w: node_id must be non-empty", ErrInvalidRequest)
	}
	if runId == 0 {
		return fmt.Errorf("%w: run_id must be positive", ErrInvalidRequest)
	}
	return nil
}

type MsgAssignTrainingTask struct {
	Creator   string                 `json:"creator"`
	TaskId    uint64                 `json:"task_id"`
	Assignees []TrainingTaskAssignee `json:"assignees"`
}

func (m *MsgAssignTrainingTask) Type() MsgType     { return MsgTypeAssignTrainingTask }
func (m *MsgAssignTrainingTask) GetSigner() string { return m.Creator }

func (m *MsgAssignTrainingTask) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	if len(m.Assignees) == 0 {
		return fmt.Errorf("%w: assignees must be non-empty", ErrInvalidRequest)
	}
	return validateAssignees(m.Assignees)
}

type MsgClaimTrainingTaskForAssignment struct {
	Creator string `json:"creator"`
	TaskId  uint64 `json:"task_id"`
}

func (m *MsgClaimTrainingTaskForAssignment) Type() MsgType     { return MsgTypeClaimTrainingTaskForAssign }
func (m *MsgClaimTrainingTaskForAssignment) GetSigner() string { return m.Creator }

func (m *MsgClaimTrainingTaskForAssignment) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	if m.TaskId == 0 {
		return fmt.Errorf("%w: task_id must be positive", ErrInvalidRequest)
	}
	return nil
}

type MsgCreateDummyTrainingTask struct {
	Creator string       `json:"creator"`
	Task    TrainingTask `json:"task"`
}

func (m *MsgCreateDummyTrainingTask) Type() MsgType     { return MsgTypeCreateDummyTrainingTask }
func (m *MsgCreateDummyTrainingTask) GetSigner() string { return m.Creator }

func (m *MsgCreateDummyTrainingTask) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	if err := validateHardware(m.Task.HardwareResources); err != nil {
		return err
	}
	return validateAssignees(m.Task.Assignees)
}

type MsgCreateTrainingTask struct {
	Creator           string                      `json:"creator"`
	HardwareResources []TrainingHardwareResources `json:"hardware_resources"`
	Config            TrainingConfig              `json:"config"`
}

func (m *MsgCreateTrainingTask) Type() MsgType     { return MsgTypeCreateTrainingTask }
func (m *MsgCreateTrainingTask) GetSigner() string { return m.Creator }

func (m *MsgCreateTrainingTask) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	return validateHardware(m.HardwareResources)
}

type MsgJoinTraining struct {
	Creator string              `json:"creator"`
	Req     JoinTrainingRequest `json:"req"`
}

func (m *MsgJoinTraining) Type() MsgType     { return MsgTypeJoinTraining }
func (m *MsgJoinTraining) GetSigner() string { return m.Creator }

func (m *MsgJoinTraining) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	return validateNode(m.Req.NodeId, m.Req.RunId)
}

type MsgJoinTrainingStatus struct {
	Creator string              `json:"creator"`
	Req     JoinTrainingRequest `json:"req"`
}

func (m *MsgJoinTrainingStatus) Type() MsgType     { return MsgTypeJoinTrainingStatus }
func (m *MsgJoinTrainingStatus) GetSigner() string { return m.Creator }

func (m *MsgJoinTrainingStatus) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	return validateNode(m.Req.NodeId, m.Req.RunId)
}

type MsgSetBarrier struct {
	Creator string            `json:"creator"`
	Req     SetBarrierRequest `json:"req"`
}

func (m *MsgSetBarrier) Type() MsgType     { return MsgTypeSetBarrier }
func (m *MsgSetBarrier) GetSigner() string { return m.Creator }

func (m *MsgSetBarrier) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	if m.Req.BarrierId == "" {
		return fmt.Errorf("%w: barrier_id must be non-empty", ErrInvalidRequest)
	}
	return validateNode(m.Req.NodeId, m.Req.RunId)
}

type MsgTrainingHeartbeat struct {
	Creator string           `json:"creator"`
	Req     HeartbeatRequest `json:"req"`
}

func (m *MsgTrainingHeartbeat) Type() MsgType     { return MsgTypeTrainingHeartbeat }
func (m *MsgTrainingHeartbeat) GetSigner() string { return m.Creator }

func (m *MsgTrainingHeartbeat) ValidateBasic() error {
	if err := validateCreator(m.Creator); err != nil {
		return err
	}
	return validateNode(m.Req.NodeId, m.Req.RunId)
}

package allowlist

import (
	"github.com/gradosphera/gonka/tx"
)

// Kinds is the battery of training coordination messages gated by the allow list.
var Kinds = []tx.MsgType{
	tx.MsgTypeAssignTrainingTask,
	tx.MsgTypeClaimTrainingTaskForAssign,
	tx.MsgTypeCreateDummyTrainingTask,
	tx.MsgTypeCreateTrainingTask,
	tx.MsgTypeJoinTraining,
	tx.MsgTypeJoinTrainingStatus,
	tx.MsgTypeSetBarrier,
	tx.MsgTypeTrainingHeartbeat,
}

const (
	probeTaskID = 5
	probeRunID  = 50
	probeNodeID = "node1"
)

// Battery builds one well-formed message per kind, sent by creator and
// naming peer as the task assignee.
func Battery(creator, peer string) []tx.Msg {
	if peer == "" {
		peer = creator
	}
	assignees := []tx.TrainingTaskAssignee{{Participant: peer, NodeIds: []string{probeNodeID}}}
	hardware := []tx.TrainingHardwareResources{{Type: "v5e", Count: 5}}
	join := tx.JoinTrainingRequest{NodeId: probeNodeID, RunId: probeRunID, OuterStep: 5}
	return []tx.Msg{
		&tx.MsgAssignTrainingTask{Creator: creator, TaskId: probeTaskID, Assignees: assignees},
		&tx.MsgClaimTrainingTaskForAssignment{Creator: creator, TaskId: probeTaskID},
		&tx.MsgCreateDummyTrainingTask{Creator: creator, Task: tx.TrainingTask{
			Id:                500,
			RequestedBy:       creator,
			Assigner:          creator,
			HardwareResources: hardware,
			Assignees:         assignees,
		}},
		&tx.MsgCreateTrainingTask{Creator: creator, HardwareResources: hardware, Config: tx.TrainingConfig{
			Datasets: tx.TrainingDatasets{Train: "train", Test: "test"},
			NumUoc:   100,
		}},
		&tx.MsgJoinTraining{Creator: creator, Req: join},
		&tx.MsgJoinTrainingStatus{Creator: creator, Req: join},
		&tx.MsgSetBarrier{Creator: creator, Req: tx.SetBarrierRequest{BarrierId: "barrier", NodeId: probeNodeID, RunId: probeRunID, OuterStep: 5}},
		&tx.MsgTrainingHeartbeat{Creator: creator, Req: tx.HeartbeatRequest{
			NodeId:    probeNodeID,
			RunId:     probeRunID,
			OuterStep: 5,
			InnerStep: 5,
			Timestamp: 5.5,
			Epoch:     4,
			LocalRank: 5,
		}},
	}
}

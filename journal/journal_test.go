package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRecordProposalUpserts(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.RecordProposal(&Proposal{ChainId: "c", ProposalId: 1, Kind: "upgrade", Title: "v2", State: "submitted", TargetHeight: 40}))
	require.NoError(t, j.RecordProposal(&Proposal{ChainId: "c", ProposalId: 1, State: "effective", Height: 41}))
	require.NoError(t, j.RecordProposal(&Proposal{ChainId: "other", ProposalId: 1, State: "submitted"}))

	p, err := j.getProposal("c", 1)
	require.NoError(t, err)
	assert.Equal(t, "effective", p.State)
	assert.Equal(t, "upgrade", p.Kind)
	assert.Equal(t, "v2", p.Title)
	assert.Equal(t, uint64(40), p.TargetHeight)
	assert.Equal(t, uint64(41), p.Height)

	proposals, total, err := j.getProposals(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Len(t, proposals, 2)
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := openJournal(t)
	stageDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(stageDir, "abc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stageDir, "abc", "node.zip"), []byte("binary"), 0o644))

	require.NoError(t, j.RecordProposal(&Proposal{ChainId: "c", ProposalId: 3, Kind: "allow_list", State: "effective"}))
	require.NoError(t, j.RecordVote(&Vote{ChainId: "c", ProposalId: 3, Node: "join1", Option: "yes"}))
	require.NoError(t, j.RecordVote(&Vote{ChainId: "c", ProposalId: 3, Node: "join2", Option: "yes"}))
	require.NoError(t, j.RecordProbe(&Probe{ChainId: "c", Address: "A", Kind: "MsgSetBarrier", Expect: "rejected", Code: 1139, Passed: true}))
	require.NoError(t, j.RecordConvergence(&Convergence{ChainId: "c", ProposalId: 3, Node: "join1", Converged: true}))
	require.NoError(t, j.RecordConvergence(&Convergence{ChainId: "c", ProposalId: 3, Node: "genesis", Error: "timeout"}))

	h := NewService("", j, stageDir).Handler()

	w := post(t, h, "/getProposals", GetProposalsReq{ChainId: "c", ProposalId: 3})
	require.Equal(t, http.StatusOK, w.Code)
	var proposals GetProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proposals))
	require.Len(t, proposals.Proposals, 1)
	assert.Len(t, proposals.Proposals[0].Votes, 2)

	w = post(t, h, "/getProposals", GetProposalsReq{ProposalId: 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, h, "/getProbes", GetProbesReq{Address: "A"})
	require.Equal(t, http.StatusOK, w.Code)
	var probes GetProbesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &probes))
	assert.Equal(t, uint64(1), probes.Total)
	assert.Equal(t, uint32(1139), probes.Probes[0].Code)

	w = post(t, h, "/getConvergence", GetConvergenceReq{ChainId: "c", ProposalId: 3})
	require.Equal(t, http.StatusOK, w.Code)
	var conv GetConvergenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	require.Len(t, conv.Nodes, 2)
	assert.Equal(t, "genesis", conv.Nodes[0].Node)
	assert.Equal(t, "timeout", conv.Nodes[0].Error)

	req := httptest.NewRequest(http.MethodGet, "/files/abc/node.zip", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(body))
}

package upgrade

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/devnet"
	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

type memRecorder struct {
	journal.Nop
	mtx         sync.Mutex
	convergence []*journal.Convergence
}

func (r *memRecorder) RecordConvergence(c *journal.Convergence) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.convergence = append(r.convergence, c)
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.StageDir = t.TempDir()
	cfg.BaseURL = "http://genesis-mock-server:8080/files"
	cfg.SafetyMargin = 5
	cfg.ActivationOffset = 30
	cfg.ConvergenceTimeout = 5 * time.Second
	return cfg
}

func startTestnet(t *testing.T, specs ...devnet.NodeSpec) *devnet.Testnet {
	t.Helper()
	dcfg := devnet.DefaultConfig()
	dcfg.BlockTime = 10 * time.Millisecond
	dcfg.RestartDelay = 50 * time.Millisecond
	st := types.DefaultAppState()
	st.Gov.VotingPeriod = 10
	st.NodeVersion = "v1.0.0"
	tn, err := devnet.NewTestnet(dcfg, "testermint", st, specs, cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { tn.Stop() })
	tn.Start()
	return tn
}

func coordinatorFor(t *testing.T, cfg Config, cl *cluster.Cluster) (*Coordinator, *memRecorder) {
	t.Helper()
	poller := poll.New(10*time.Millisecond, cmtlog.NewNopLogger())
	genesis := cl.Genesis()
	_, err := poller.AwaitMinimumHeight(context.Background(), genesis.Name(), genesis.Client(), 1, 5*time.Second)
	require.NoError(t, err)
	rec := &memRecorder{}
	g := gov.NewCoordinator(cl, poller, rec, gov.Config{EffectTimeout: 10 * time.Second}, cmtlog.NewNopLogger())
	stager := NewStager(cfg.StageDir, cfg.BaseURL, cmtlog.NewNopLogger())
	return NewCoordinator(g, stager, cfg, cmtlog.NewNopLogger()), rec
}

func newCoordinator(t *testing.T, cfg Config, specs ...devnet.NodeSpec) (*Coordinator, *devnet.Testnet, *memRecorder) {
	t.Helper()
	tn := startTestnet(t, specs...)
	cl, err := tn.Cluster()
	require.NoError(t, err)
	c, rec := coordinatorFor(t, cfg, cl)
	return c, tn, rec
}

var errSupervisorDown = errors.New("supervisor unreachable")

// noRestart is a node whose supervisor cannot be reached.
type noRestart struct {
	chain.Client
}

func (noRestart) Restart(context.Context) error {
	return errSupervisorDown
}

func TestFileChecksum(t *testing.T) {
	sum, err := FileChecksum(writeFile(t, "hello.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, helloSum, sum)

	_, err = FileChecksum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, "http://genesis-mock-server:8080/files/", cmtlog.NewNopLogger())
	src := writeFile(t, "inferenced-amd64.zip", "hello")
	ctx := context.Background()

	sa, err := s.Stage(ctx, Artifact{Path: src})
	require.NoError(t, err)
	assert.Equal(t, helloSum, sa.Sha256)
	assert.Equal(t, DefaultPlatform, sa.Platform)
	assert.Equal(t, filepath.Join(dir, helloSum, "inferenced-amd64.zip"), sa.StagedPath)
	assert.Equal(t, "http://genesis-mock-server:8080/files/"+helloSum+"/inferenced-amd64.zip?checksum=sha256:"+helloSum, sa.URL)
	dat, err := os.ReadFile(sa.StagedPath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(dat))

	_, err = s.Stage(ctx, Artifact{Path: src, Checksum: strings.ToUpper(helloSum)})
	require.NoError(t, err)

	_, err = s.Stage(ctx, Artifact{Path: src, Checksum: strings.Repeat("0", 64)})
	var integrity *ArtifactIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, helloSum, integrity.Actual)

	_, _, err = s.StageAll(ctx, []Artifact{{Path: src}, {Path: src}})
	assert.Error(t, err)
}

func TestStageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/releases/download/v2.0.0/inferenced-amd64.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()
	dir := t.TempDir()
	s := NewStager(dir, "http://genesis-mock-server:8080/files/", cmtlog.NewNopLogger())
	ctx := context.Background()
	src := srv.URL + "/releases/download/v2.0.0/inferenced-amd64.zip"

	sa, err := s.Stage(ctx, Artifact{URL: src, Checksum: helloSum})
	require.NoError(t, err)
	assert.Equal(t, helloSum, sa.Sha256)
	assert.Equal(t, src, sa.Artifact.URL)
	assert.Equal(t, filepath.Join(dir, helloSum, "inferenced-amd64.zip"), sa.StagedPath)
	dat, err := os.ReadFile(sa.StagedPath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(dat))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, helloSum, entries[0].Name())

	_, err = s.Stage(ctx, Artifact{URL: src, Checksum: strings.Repeat("0", 64)})
	var integrity *ArtifactIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, src, integrity.Path)

	_, err = s.Stage(ctx, Artifact{URL: srv.URL + "/releases/download/v2.0.0/missing.zip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = s.Stage(ctx, Artifact{URL: srv.URL + "/"})
	assert.Error(t, err)
	_, err = s.Stage(ctx, Artifact{})
	assert.Error(t, err)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReleaseURL(t *testing.T) {
	assert.Equal(t,
		"https://github.com/product-science/race-releases/releases/download/release/v0.1.2/inferenced-amd64.zip",
		ReleaseURL("product-science/race-releases", "release/v0.1.2", "inferenced-amd64.zip"))
}

func TestConfigValidateBasic(t *testing.T) {
	require.NoError(t, DefaultConfig().ValidateBasic())
	cfg := DefaultConfig()
	cfg.ActivationOffset = cfg.SafetyMargin
	assert.Error(t, cfg.ValidateBasic())
}

func TestActivationTooSoon(t *testing.T) {
	cfg := testConfig(t)
	c, tn, _ := newCoordinator(t, cfg, devnet.NodeSpec{Name: "genesis"})
	ctx := context.Background()

	_, err := c.Activation(ctx, cfg.SafetyMargin)
	assert.ErrorIs(t, err, ErrActivationTooSoon)
	_, err = c.Activation(ctx, 10)
	assert.ErrorIs(t, err, ErrActivationTooSoon)

	before := tn.Chain.Height()
	h, err := c.Activation(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h, before+cfg.ActivationOffset)

	_, err = c.RunFull(ctx, FullUpgrade{Name: "v2.0.0"})
	assert.ErrorIs(t, err, ErrNoBinaries)
}

func TestRunFull(t *testing.T) {
	cfg := testConfig(t)
	c, tn, rec := newCoordinator(t, cfg,
		devnet.NodeSpec{Name: "genesis"},
		devnet.NodeSpec{Name: "join1"},
		devnet.NodeSpec{Name: "join2"},
	)
	ctx := context.Background()

	rep, err := c.RunFull(ctx, FullUpgrade{
		Name:        "v2.0.0",
		Binaries:    []Artifact{{Path: writeFile(t, "inferenced-amd64.zip", "node")}},
		ApiBinaries: []Artifact{{Path: writeFile(t, "decentralized-api-amd64.zip", "api")}},
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Outcome)
	assert.Equal(t, gov.StateEffective, rep.Outcome.State)
	assert.Len(t, rep.Artifacts, 2)
	require.Len(t, rep.Nodes, 3)
	for _, n := range tn.Nodes {
		nr := rep.Nodes[n.Name()]
		require.NotNil(t, nr, n.Name())
		assert.True(t, nr.Converged, n.Name())
		assert.Equal(t, "v2.0.0", nr.Version)
		assert.GreaterOrEqual(t, nr.Height, rep.ActivationHeight)
		assert.Equal(t, 1, n.Restarts())
	}
	for _, n := range c.gov.Cluster().AllPairs() {
		assert.False(t, n.NeedsReboot(), n.Name())
	}

	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	assert.Len(t, rec.convergence, 3)
	for _, row := range rec.convergence {
		assert.Equal(t, "testermint", row.ChainId)
		assert.Equal(t, rep.ProposalID, row.ProposalId)
		assert.True(t, row.Converged)
	}
}

func TestRunFullRestartFailureReportedPerNode(t *testing.T) {
	cfg := testConfig(t)
	tn := startTestnet(t,
		devnet.NodeSpec{Name: "genesis"},
		devnet.NodeSpec{Name: "join1"},
		devnet.NodeSpec{Name: "join2"},
	)
	genesis := cluster.NewProductionNode("genesis", cluster.RoleGenesis, tn.Nodes[0])
	join1 := cluster.NewProductionNode("join1", cluster.RoleJoin, noRestart{tn.Nodes[1]})
	join2 := cluster.NewProductionNode("join2", cluster.RoleJoin, tn.Nodes[2])
	cl, err := cluster.New(genesis, join1, join2)
	require.NoError(t, err)
	c, rec := coordinatorFor(t, cfg, cl)

	rep, err := c.RunFull(context.Background(), FullUpgrade{
		Name:     "v2.0.0",
		Binaries: []Artifact{{Path: writeFile(t, "inferenced-amd64.zip", "node")}},
	})
	var conv *ConvergenceError
	require.ErrorAs(t, err, &conv)
	assert.Len(t, conv.Nodes, 1)
	assert.ErrorIs(t, conv.Nodes["join1"], errSupervisorDown)
	require.NotNil(t, rep.Outcome)
	assert.Equal(t, gov.StateEffective, rep.Outcome.State)

	require.Len(t, rep.Nodes, 3)
	assert.False(t, rep.Nodes["join1"].Converged)
	assert.ErrorIs(t, rep.Nodes["join1"].Err, errSupervisorDown)
	for _, name := range []string{"genesis", "join2"} {
		assert.True(t, rep.Nodes[name].Converged, name)
		assert.Equal(t, "v2.0.0", rep.Nodes[name].Version, name)
	}
	assert.Zero(t, tn.Nodes[1].Restarts())
	assert.True(t, join1.NeedsReboot())
	assert.False(t, genesis.NeedsReboot())
	assert.False(t, join2.NeedsReboot())

	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	require.Len(t, rec.convergence, 3)
	for _, row := range rec.convergence {
		assert.Equal(t, row.Node != "join1", row.Converged, row.Node)
	}
}

func TestRunFullIntegrityFailsBeforeProposal(t *testing.T) {
	cfg := testConfig(t)
	c, _, _ := newCoordinator(t, cfg, devnet.NodeSpec{Name: "genesis"}, devnet.NodeSpec{Name: "join1"})
	ctx := context.Background()

	rep, err := c.RunFull(ctx, FullUpgrade{
		Name:     "v2.0.0",
		Binaries: []Artifact{{Path: writeFile(t, "inferenced-amd64.zip", "node"), Checksum: strings.Repeat("0", 64)}},
	})
	var integrity *ArtifactIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Zero(t, rep.ProposalID)
	assert.Nil(t, rep.Outcome)

	_, err = c.gov.Proposal(ctx, 1)
	assert.True(t, chain.IsNotFound(err), err)
	for _, n := range c.gov.Cluster().AllPairs() {
		assert.False(t, n.NeedsReboot(), n.Name())
	}
}

func TestRunFullRejectedSubmissionClearsReboot(t *testing.T) {
	cfg := testConfig(t)
	c, _, _ := newCoordinator(t, cfg, devnet.NodeSpec{Name: "genesis"}, devnet.NodeSpec{Name: "join1"})

	rep, err := c.RunFull(context.Background(), FullUpgrade{
		Binaries: []Artifact{{Path: writeFile(t, "inferenced-amd64.zip", "node")}},
	})
	var rejected *gov.SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Zero(t, rep.ProposalID)
	for _, n := range c.gov.Cluster().AllPairs() {
		assert.False(t, n.NeedsReboot(), n.Name())
	}
}

func TestAbandoned(t *testing.T) {
	assert.True(t, abandoned(nil))
	assert.True(t, abandoned(&gov.Outcome{}))
	assert.True(t, abandoned(&gov.Outcome{ProposalID: 1, State: gov.StateRejected}))
	assert.True(t, abandoned(&gov.Outcome{ProposalID: 1, State: gov.StateExpired}))
	assert.False(t, abandoned(&gov.Outcome{ProposalID: 1, State: gov.StateVoting}))
	assert.False(t, abandoned(&gov.Outcome{ProposalID: 1, State: gov.StateEffective}))
}

func TestRunPartial(t *testing.T) {
	cfg := testConfig(t)
	mock := &cluster.MockConfig{Host: "join1-mock-server", Responses: map[string]string{"/v3.1.0": "Only a short response"}}
	c, tn, _ := newCoordinator(t, cfg,
		devnet.NodeSpec{Name: "genesis"},
		devnet.NodeSpec{Name: "join1", Mock: mock},
	)
	ctx := context.Background()

	rep, err := c.RunPartial(ctx, PartialUpgrade{
		NodeVersion: "v3.1.0",
		ApiBinaries: []Artifact{{Path: writeFile(t, "decentralized-api-amd64.zip", "api")}},
	})
	require.NoError(t, err)
	require.Len(t, rep.Nodes, 2)
	for _, n := range tn.Nodes {
		assert.True(t, rep.Nodes[n.Name()].Converged, n.Name())
		assert.Equal(t, "v1.0.0", rep.Nodes[n.Name()].Version)
		assert.Zero(t, n.Restarts())
	}
}

func TestRunPartialMockWithoutSegment(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConvergenceTimeout = time.Second
	mock := &cluster.MockConfig{Host: "join1-mock-server", Responses: map[string]string{"/v3.0.8": "old"}}
	c, _, rec := newCoordinator(t, cfg,
		devnet.NodeSpec{Name: "genesis"},
		devnet.NodeSpec{Name: "join1", Mock: mock},
	)

	rep, err := c.RunPartial(context.Background(), PartialUpgrade{NodeVersion: "v3.1.0"})
	var conv *ConvergenceError
	require.ErrorAs(t, err, &conv)
	assert.Contains(t, conv.Nodes, "join1")
	assert.NotContains(t, conv.Nodes, "genesis")
	assert.True(t, errors.Is(err, poll.ErrTimeoutExceeded))
	assert.True(t, rep.Nodes["genesis"].Converged)
	assert.False(t, rep.Nodes["join1"].Converged)

	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	assert.Len(t, rec.convergence, 2)
}

func TestProbeFunc(t *testing.T) {
	var p Probe = ProbeFunc(func(ctx context.Context, n cluster.Node) (bool, any, error) {
		return n.Name() == "genesis", n.Name(), nil
	})
	n := cluster.NewProductionNode("genesis", cluster.RoleGenesis, nil)
	done, observed, err := p.Check(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "genesis", observed)
	assert.Equal(t, "route=/v2", RouteProbe{Segment: "/v2"}.Name())
}

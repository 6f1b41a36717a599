package main

import (
	"context"
	"fmt"
	"os"

	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/allowlist"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/config"
	"github.com/gradosphera/gonka/devnet"
	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/upgrade"
)

// env is everything one command run works with. Nothing in it is global,
// so commands never share a cluster.
type env struct {
	cfg     *config.Config
	logger  cmtlog.Logger
	cluster *cluster.Cluster
	testnet *devnet.Testnet
	journal *journal.Journal
	poller  *poll.Poller
	gov     *gov.Coordinator
	upgrade *upgrade.Coordinator
	allow   *allowlist.Verifier
}

func newLogger(level string) (cmtlog.Logger, error) {
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err := cmtflags.ParseLogLevel(level, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	return logger, nil
}

func newEnv(home string, useDevnet bool) (*env, error) {
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}

	if useDevnet {
		if e.testnet, err = cfg.BuildDevnet(logger); err != nil {
			return nil, fmt.Errorf("build devnet: %w", err)
		}
		if e.cluster, err = e.testnet.Cluster(); err != nil {
			e.testnet.Stop()
			return nil, err
		}
		e.testnet.Start()
	} else if e.cluster, err = cfg.BuildCluster(logger); err != nil {
		return nil, fmt.Errorf("build cluster: %w", err)
	}

	if e.journal, err = journal.Open(cfg.Path(cfg.Journal.Path), logger); err != nil {
		e.close()
		return nil, err
	}
	e.poller = poll.New(cfg.Poll.Interval, logger)
	e.gov = gov.NewCoordinator(e.cluster, e.poller, e.journal, cfg.Gov, logger)
	stager := upgrade.NewStager(cfg.Path(cfg.Upgrade.StageDir), cfg.Upgrade.BaseURL, logger)
	e.upgrade = upgrade.NewCoordinator(e.gov, stager, cfg.Upgrade, logger)
	e.allow = allowlist.NewVerifier(e.gov, cfg.Codes, cfg.Poll.BlockTimeout, logger)
	return e, nil
}

// ready waits until every node has produced a block on the same chain.
func (e *env) ready(ctx context.Context) (map[string]cluster.Status, error) {
	return cluster.Bootstrap(ctx, e.cluster, e.poller, e.cfg.Poll.BootstrapTimeout)
}

func (e *env) close() {
	if e.journal != nil {
		e.journal.Close()
	}
	if e.testnet != nil {
		if err := e.testnet.Stop(); err != nil {
			e.logger.Error("stop devnet fail", "err", err)
		}
	}
}

// run builds an env, waits for the cluster and hands it to fn.
func run(home string, useDevnet bool, fn func(ctx context.Context, e *env) error) error {
	e, err := newEnv(home, useDevnet)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := context.Background()
	if _, err = e.ready(ctx); err != nil {
		return err
	}
	return fn(ctx, e)
}

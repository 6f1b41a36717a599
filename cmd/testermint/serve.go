package main

import (
	"github.com/gradosphera/gonka/config"
	"github.com/gradosphera/gonka/journal"
	"github.com/spf13/cobra"
)

type serveArguments struct {
	Home string
}

var serveArgs serveArguments

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run journal and the staged upgrade artifacts over HTTP",
	Args:  cobra.ExactArgs(0),
	RunE:  serveRun,
}

func init() {
	homeFlag(serveCmd, &serveArgs.Home)
}

func serveRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveArgs.Home)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.Path(cfg.Journal.Path), logger)
	if err != nil {
		return err
	}
	defer j.Close()
	logger.Info("journal service start", "addr", cfg.Journal.ListenAddr, "files", cfg.Path(cfg.Upgrade.StageDir))
	return journal.NewService(cfg.Journal.ListenAddr, j, cfg.Path(cfg.Upgrade.StageDir)).Start()
}

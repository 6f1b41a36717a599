package main

import (
	"context"

	"github.com/spf13/cobra"
)

type statusArguments struct {
	Home   string
	Devnet bool
}

var statusArgs statusArguments

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Wait for every node to produce a block and print its height and version",
	Args:  cobra.ExactArgs(0),
	RunE:  statusRun,
}

func init() {
	homeFlag(statusCmd, &statusArgs.Home)
	devnetFlag(statusCmd, &statusArgs.Devnet)
}

func statusRun(cmd *cobra.Command, args []string) error {
	e, err := newEnv(statusArgs.Home, statusArgs.Devnet)
	if err != nil {
		return err
	}
	defer e.close()
	statuses, err := e.ready(context.Background())
	if err != nil {
		return err
	}
	return printJSON(statuses)
}

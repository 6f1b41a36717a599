package main

import (
	"context"

	"github.com/gradosphera/gonka/upgrade"
	"github.com/spf13/cobra"
)

type partialUpgradeArguments struct {
	Home        string
	Devnet      bool
	NodeVersion string
	ApiBinaries []string
	Offset      uint64
}

var partialUpgradeArgs partialUpgradeArguments

var partialUpgradeCmd = &cobra.Command{
	Use:   "partial-upgrade",
	Short: "Switch the ML node version without restarting any node",
	Args:  cobra.ExactArgs(0),
	RunE:  partialUpgradeRun,
}

func init() {
	homeFlag(partialUpgradeCmd, &partialUpgradeArgs.Home)
	devnetFlag(partialUpgradeCmd, &partialUpgradeArgs.Devnet)
	partialUpgradeCmd.Flags().StringVar(&partialUpgradeArgs.NodeVersion, "node-version", "", "ML node version to switch to")
	partialUpgradeCmd.Flags().StringSliceVar(&partialUpgradeArgs.ApiBinaries, "api-binary", nil, "api binary, [platform=]path[#sha256]")
	partialUpgradeCmd.Flags().Uint64Var(&partialUpgradeArgs.Offset, "offset", 0, "blocks from now to activation (default from config)")
	partialUpgradeCmd.MarkFlagRequired("node-version")
}

func partialUpgradeRun(cmd *cobra.Command, args []string) error {
	apiBinaries, err := parseArtifacts(partialUpgradeArgs.ApiBinaries)
	if err != nil {
		return err
	}
	return run(partialUpgradeArgs.Home, partialUpgradeArgs.Devnet, func(ctx context.Context, e *env) error {
		return printReport(e.upgrade.RunPartial(ctx, upgrade.PartialUpgrade{
			NodeVersion: partialUpgradeArgs.NodeVersion,
			ApiBinaries: apiBinaries,
			Offset:      partialUpgradeArgs.Offset,
		}))
	})
}

package main

import (
	"context"

	"github.com/gradosphera/gonka/upgrade"
	"github.com/spf13/cobra"
)

type upgradeArguments struct {
	Home        string
	Devnet      bool
	Name        string
	Summary     string
	Binaries    []string
	ApiBinaries []string
	Release     string
	Offset      uint64
}

var upgradeArgs upgradeArguments

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Stage new binaries and drive a full software upgrade",
	Long: `Stage the node and api binaries, propose a software upgrade activating
--offset blocks from now, restart every node once the chain halts and wait for
all of them to report the new version.

Artifacts are given as [platform=]path[#sha256], where path may be an
http(s) URL. --release owner/repo@tag stages the amd64 archives of a GitHub
release instead.`,
	Args: cobra.ExactArgs(0),
	RunE: upgradeRun,
}

func init() {
	homeFlag(upgradeCmd, &upgradeArgs.Home)
	devnetFlag(upgradeCmd, &upgradeArgs.Devnet)
	upgradeCmd.Flags().StringVarP(&upgradeArgs.Name, "name", "n", "", "upgrade name, also the expected node version")
	upgradeCmd.Flags().StringVarP(&upgradeArgs.Summary, "summary", "s", "", "proposal summary")
	upgradeCmd.Flags().StringSliceVarP(&upgradeArgs.Binaries, "binary", "b", nil, "node binary")
	upgradeCmd.Flags().StringSliceVar(&upgradeArgs.ApiBinaries, "api-binary", nil, "api binary")
	upgradeCmd.Flags().StringVarP(&upgradeArgs.Release, "release", "r", "", "GitHub release to stage, owner/repo@tag")
	upgradeCmd.Flags().Uint64Var(&upgradeArgs.Offset, "offset", 0, "blocks from now to activation (default from config)")
	upgradeCmd.MarkFlagRequired("name")
}

func upgradeRun(cmd *cobra.Command, args []string) error {
	binaries, err := parseArtifacts(upgradeArgs.Binaries)
	if err != nil {
		return err
	}
	apiBinaries, err := parseArtifacts(upgradeArgs.ApiBinaries)
	if err != nil {
		return err
	}
	if upgradeArgs.Release != "" {
		node, api, err := releaseArtifacts(upgradeArgs.Release)
		if err != nil {
			return err
		}
		binaries = append(binaries, node)
		apiBinaries = append(apiBinaries, api)
	}
	return run(upgradeArgs.Home, upgradeArgs.Devnet, func(ctx context.Context, e *env) error {
		return printReport(e.upgrade.RunFull(ctx, upgrade.FullUpgrade{
			Name:        upgradeArgs.Name,
			Summary:     upgradeArgs.Summary,
			Binaries:    binaries,
			ApiBinaries: apiBinaries,
			Offset:      upgradeArgs.Offset,
		}))
	})
}

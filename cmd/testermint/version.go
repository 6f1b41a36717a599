package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// GitCommit may be set with -ldflags "-X main.GitCommit=...".
var GitCommit string

const (
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)

var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)

// commit is GitCommit, or the vcs revision go build stamped into the binary.
func commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func VersionWithCommit(gitCommit string) string {
	vsn := Version
	if len(gitCommit) >= 8 {
		vsn += "-" + gitCommit[:8]
	}
	return vsn
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the testermint version",
	Long: `Print the testermint version followed by the first eight characters of
the commit it was built from, when known.`,
	Aliases: []string{"V"},
	Args:    cobra.ExactArgs(0),
	RunE:    versionRun,
}

func versionRun(cmd *cobra.Command, args []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), VersionWithCommit(commit()))
	return err
}

package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(proposalCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(partialUpgradeCmd)
	rootCmd.AddCommand(allowListCmd)
	rootCmd.AddCommand(checksumCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

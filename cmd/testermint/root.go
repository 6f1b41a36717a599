package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testermint",
	Short: "Lifecycle orchestration harness for a multi-node chain",
	Long: `Drives governance proposals, binary and partial upgrades and
training allow list checks against a running cluster or an in-process devnet.`,
	SilenceUsage: true,
}

func homeFlag(cmd *cobra.Command, home *string) {
	cmd.Flags().StringVarP(home, "home", "d", "", "home directory (default $HOME/.testermint)")
}

func devnetFlag(cmd *cobra.Command, devnet *bool) {
	cmd.Flags().BoolVar(devnet, "devnet", false, "run against an in-process devnet built from the node roster")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", out)
	return err
}

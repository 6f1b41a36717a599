package main

import (
	"context"

	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/tx"
	"github.com/spf13/cobra"
)

type proposalArguments struct {
	Home    string
	Devnet  bool
	Title   string
	Summary string
	Voters  []string
}

var proposalArgs proposalArguments

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Run a text proposal through submit, deposit, vote and effect",
	Args:  cobra.ExactArgs(0),
	RunE:  proposalRun,
}

func init() {
	homeFlag(proposalCmd, &proposalArgs.Home)
	devnetFlag(proposalCmd, &proposalArgs.Devnet)
	proposalCmd.Flags().StringVarP(&proposalArgs.Title, "title", "t", "testermint", "proposal title")
	proposalCmd.Flags().StringVarP(&proposalArgs.Summary, "summary", "s", "", "proposal summary")
	proposalCmd.Flags().StringSliceVar(&proposalArgs.Voters, "voters", nil, "nodes voting yes (default every join node)")
}

func proposalRun(cmd *cobra.Command, args []string) error {
	return run(proposalArgs.Home, proposalArgs.Devnet, func(ctx context.Context, e *env) error {
		out, err := e.gov.Run(ctx, &gov.Proposal{
			Title:   proposalArgs.Title,
			Summary: proposalArgs.Summary,
			Content: &tx.TextContent{},
			Voters:  proposalArgs.Voters,
		})
		if out != nil {
			if perr := printJSON(outcomeView(out)); perr != nil {
				return perr
			}
		}
		return err
	})
}

type outcomeInfo struct {
	ProposalID uint64 `json:"proposal_id"`
	State      string `json:"state"`
	Height     uint64 `json:"height"`
	Attempts   int    `json:"attempts"`
	Elapsed    string `json:"elapsed"`
}

func outcomeView(out *gov.Outcome) outcomeInfo {
	return outcomeInfo{
		ProposalID: out.ProposalID,
		State:      out.State.String(),
		Height:     out.Height,
		Attempts:   out.Attempts,
		Elapsed:    out.Elapsed.String(),
	}
}

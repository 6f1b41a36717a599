package main

import (
	"context"
	"fmt"

	"github.com/gradosphera/gonka/allowlist"
	"github.com/gradosphera/gonka/cluster"
	"github.com/spf13/cobra"
)

type allowListArguments struct {
	Home   string
	Devnet bool
	Expect string
	Nodes  []string
}

var allowListArgs allowListArguments

var allowListCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Read, change and verify the training allow list",
}

var allowListShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the allow list",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAllowList(func(ctx context.Context, e *env) ([]string, error) {
			return e.allow.List(ctx)
		})
	},
}

var allowListAddCmd = &cobra.Command{
	Use:   "add <address|node>",
	Short: "Add an address through a governance proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAllowList(func(ctx context.Context, e *env) ([]string, error) {
			return e.allow.Add(ctx, resolveAddress(e.cluster, args[0]))
		})
	},
}

var allowListRemoveCmd = &cobra.Command{
	Use:   "remove <address|node>",
	Short: "Remove an address through a governance proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAllowList(func(ctx context.Context, e *env) ([]string, error) {
			return e.allow.Remove(ctx, resolveAddress(e.cluster, args[0]))
		})
	},
}

var allowListSetCmd = &cobra.Command{
	Use:   "set [address|node]...",
	Short: "Replace the whole allow list through a governance proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAllowList(func(ctx context.Context, e *env) ([]string, error) {
			addrs := make([]string, len(args))
			for i, arg := range args {
				addrs[i] = resolveAddress(e.cluster, arg)
			}
			return e.allow.Replace(ctx, addrs)
		})
	},
}

var allowListVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Send every privileged training message and check how the chain answers",
	Long: `Send every privileged training message from each node. With --expect rejected
every probe must fail as not authorized; with --expect accepted none may.`,
	Args: cobra.ExactArgs(0),
	RunE: allowListVerifyRun,
}

func init() {
	for _, cmd := range []*cobra.Command{allowListShowCmd, allowListAddCmd, allowListRemoveCmd, allowListSetCmd, allowListVerifyCmd} {
		homeFlag(cmd, &allowListArgs.Home)
		devnetFlag(cmd, &allowListArgs.Devnet)
		allowListCmd.AddCommand(cmd)
	}
	allowListVerifyCmd.Flags().StringVarP(&allowListArgs.Expect, "expect", "e", "rejected", "rejected or accepted")
	allowListVerifyCmd.Flags().StringSliceVarP(&allowListArgs.Nodes, "node", "n", nil, "nodes to probe from (default every node)")
}

// resolveAddress maps a node name to its account address and passes
// anything else through.
func resolveAddress(cl *cluster.Cluster, arg string) string {
	if n, err := cl.Node(arg); err == nil {
		return n.Client().Address()
	}
	return arg
}

func withAllowList(fn func(ctx context.Context, e *env) ([]string, error)) error {
	return run(allowListArgs.Home, allowListArgs.Devnet, func(ctx context.Context, e *env) error {
		list, err := fn(ctx, e)
		if list != nil {
			if perr := printJSON(list); perr != nil {
				return perr
			}
		}
		return err
	})
}

type probeInfo struct {
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace,omitempty"`
	Height    uint64 `json:"height,omitempty"`
}

func allowListVerifyRun(cmd *cobra.Command, args []string) error {
	verify := (*allowlist.Verifier).VerifyAllRejected
	switch allowListArgs.Expect {
	case "rejected":
	case "accepted":
		verify = (*allowlist.Verifier).VerifyAllAccepted
	default:
		return fmt.Errorf("invalid --expect %q, want rejected or accepted", allowListArgs.Expect)
	}
	return run(allowListArgs.Home, allowListArgs.Devnet, func(ctx context.Context, e *env) error {
		nodes := e.cluster.AllPairs()
		if len(allowListArgs.Nodes) > 0 {
			nodes = nodes[:0:0]
			for _, name := range allowListArgs.Nodes {
				n, err := e.cluster.Node(name)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
			}
		}
		results, err := verify(e.allow, ctx, nodes)
		view := map[string]map[string]probeInfo{}
		for addr, kinds := range results {
			view[addr] = map[string]probeInfo{}
			for kind, res := range kinds {
				if res != nil {
					view[addr][kind.String()] = probeInfo{Code: res.Code, Codespace: res.Codespace, Height: res.Height}
				}
			}
		}
		if perr := printJSON(view); perr != nil {
			return perr
		}
		return err
	})
}

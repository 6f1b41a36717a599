package main

import (
	"fmt"
	"os"
	"path/filepath"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/gradosphera/gonka/config"
	"github.com/gradosphera/gonka/journal"
	"github.com/spf13/cobra"
)

type printInfo struct {
	Home    string            `json:"home"`
	ChainID string            `json:"chain_id"`
	Config  string            `json:"config"`
	Nodes   map[string]string `json:"nodes"`
}

type initArguments struct {
	Home      string
	ChainID   string
	Overwrite bool
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration and node keys",
	Long:  `Write config/config.toml and generate a priv_validator_key.json for every node in the roster that has none.`,
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	homeFlag(initCmd, &initArgs.Home)
	initCmd.Flags().StringVar(&initArgs.ChainID, "chain-id", config.DefaultChainID, "devnet chain id")
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, "overwrite", "o", false, "overwrite an existing config.toml")
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig(initArgs.Home)
	cfg.ChainID = initArgs.ChainID
	if err := cfg.ValidateBasic(); err != nil {
		return err
	}

	configFile := config.ConfigFile(cfg.Home)
	if cmtos.FileExists(configFile) && !initArgs.Overwrite {
		return fmt.Errorf("%s already exists, use --overwrite to replace it", configFile)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), config.DefaultDirPerm); err != nil {
		return err
	}
	config.WriteConfigFile(configFile, cfg)

	keys, err := config.InitNodeKeys(cfg)
	if err != nil {
		return err
	}
	info := printInfo{Home: cfg.Home, ChainID: cfg.ChainID, Config: configFile, Nodes: map[string]string{}}
	for name, pk := range keys {
		info.Nodes[name] = pk.Address().String()
	}
	if err = cmtos.EnsureDir(cfg.Path(cfg.Upgrade.StageDir), config.DefaultDirPerm); err != nil {
		return err
	}
	// Creates the schema so serve works before the first run.
	j, err := journal.Open(cfg.Path(cfg.Journal.Path), cmtlog.NewNopLogger())
	if err != nil {
		return err
	}
	j.Close()
	return printJSON(info)
}

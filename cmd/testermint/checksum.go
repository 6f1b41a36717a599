package main

import (
	"github.com/gradosphera/gonka/config"
	"github.com/gradosphera/gonka/upgrade"
	"github.com/spf13/cobra"
)

type checksumArguments struct {
	BaseURL string
}

var checksumArgs checksumArguments

var checksumCmd = &cobra.Command{
	Use:   "checksum <file>...",
	Short: "Print the sha256 of files and the download URL a node would be given",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checksumRun,
}

func init() {
	checksumCmd.Flags().StringVarP(&checksumArgs.BaseURL, "base-url", "u", config.DefaultConfig("").Upgrade.BaseURL, "base URL of the staged files")
}

type checksumInfo struct {
	File   string `json:"file"`
	Sha256 string `json:"sha256"`
	URL    string `json:"url"`
}

func checksumRun(cmd *cobra.Command, args []string) error {
	infos := make([]checksumInfo, 0, len(args))
	for _, file := range args {
		sum, err := upgrade.FileChecksum(file)
		if err != nil {
			return err
		}
		infos = append(infos, checksumInfo{File: file, Sha256: sum, URL: upgrade.ChecksumURL(checksumArgs.BaseURL, sum)})
	}
	return printJSON(infos)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/privval"
)

func stateFile(keyFile string) string {
	return strings.TrimSuffix(keyFile, filepath.Ext(keyFile)) + ".state.json"
}

// InitNodeKeys loads every node's key file, generating the missing ones.
func InitNodeKeys(cfg *Config) (map[string]crypto.PubKey, error) {
	keys := make(map[string]crypto.PubKey, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.KeyFile == "" {
			return nil, fmt.Errorf("node %s: key_file must be set", n.Name)
		}
		keyFile := cfg.Path(n.KeyFile)
		if err := os.MkdirAll(filepath.Dir(keyFile), DefaultDirPerm); err != nil {
			return nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(keyFile), err)
		}
		filePV := privval.LoadOrGenFilePV(keyFile, stateFile(keyFile))
		pk, err := filePV.GetPubKey()
		if err != nil {
			return nil, err
		}
		keys[n.Name] = pk
	}
	return keys, nil
}

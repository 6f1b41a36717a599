package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// AppState is the application part of a devnet genesis.
type AppState struct {
	Gov           GovParams `json:"gov"`
	AllowList     []string  `json:"training_allow_list"`
	NodeVersion   string    `json:"node_version"`
	MLNodeVersion string    `json:"mlnode_version"`
}

// GenesisDoc defines the initial conditions of a devnet chain.
type GenesisDoc struct {
	GenesisTime   time.Time          `json:"genesis_time"`
	ChainID       string             `json:"chain_id"`
	InitialHeight int64              `json:"initial_height"`
	Validators    []GenesisValidator `json:"validators"`
	AppState      json.RawMessage    `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if len(ag.Validators) == 0 {
		return errors.New("genesis doc must include at least one validator")
	}
	for i, v := range ag.Validators {
		if v.Power <= 0 {
			return fmt.Errorf("validator %d (%s) has non-positive power %d", i, v.Name, v.Power)
		}
		if v.PubKey != nil && len(v.Address) == 0 {
			ag.Validators[i].Address = v.PubKey.Address()
		}
	}

	return nil
}

func (ag *GenesisDoc) SetAppState(st *AppState) error {
	dat, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ag.AppState = dat
	return nil
}

func (ag *GenesisDoc) GetAppState() (*AppState, error) {
	st := DefaultAppState()
	if len(ag.AppState) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(ag.AppState, st); err != nil {
		return nil, fmt.Errorf("decode app state: %w", err)
	}
	return st, nil
}

func GenesisDocFromFile(genFile string) (*GenesisDoc, error) {
	dat, err := os.ReadFile(genFile)
	if err != nil {
		return nil, err
	}
	var doc GenesisDoc
	if err := cmtjson.Unmarshal(dat, &doc); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", genFile, err)
	}
	return &doc, doc.ValidateAndComplete()
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

func DefaultAppState() *AppState {
	return &AppState{
		Gov: GovParams{
			MinDeposit:       NewCoin(DefaultDenom, 10000000),
			MaxDepositPeriod: 20,
			VotingPeriod:     10,
			Quorum:           34,
			Threshold:        50,
		},
		AllowList:     []string{},
		NodeVersion:   "v0.0.0",
		MLNodeVersion: DefaultMLNodeVersion,
	}
}

const DefaultDenom = "nicoin"
const DefaultPower = 10

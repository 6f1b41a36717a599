package devnet

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

var (
	KeyState          = "s"
	KeyAccountNonce   = "a%s"
	KeyGovParams      = "gp"
	KeyValidators     = "vals"
	KeyProposalIndex  = "pi"
	KeyProposalBody   = "p%v"
	KeyProposalVotes  = "v%v"
	KeyActive         = "active"
	KeyAllowList      = "al"
	KeyUpgradePlan    = "up"
	KeyAppliedUpgrade = "ua"
	KeyPartialUpgrade = "pu"
	KeyMLNodeVersion  = "mv"
	KeyNodeVersion    = "nv"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrInactiveProposal = errors.New("inactive proposal")
)

type Header struct {
	ChainID string `json:"chain_id"`
	Height  uint64 `json:"height"`
}

type Validator struct {
	Address string `json:"address"`
	Power   int64  `json:"power"`
}

type UpgradePlan struct {
	Name   string `json:"name"`
	Height uint64 `json:"height"`
	Info   string `json:"info"`
}

// State is the devnet application state for the block being built.
type State struct {
	store  *Store
	header Header
}

func newState(store *Store) *State {
	return &State{store: store}
}

func (s *State) load() error {
	_, err := s.store.getJSON(KeyState, &s.header)
	return err
}

func (s *State) Header() Header {
	return s.header
}

func (s *State) saveHeader() error {
	return s.store.setJSON(KeyState, s.header)
}

func (s *State) Nonce(addr string) (uint64, error) {
	val, err := s.store.get([]byte(fmt.Sprintf(KeyAccountNonce, addr)))
	if err != nil || val == nil {
		return 0, err
	}
	var nonce uint64
	err = rlp.DecodeBytes(val, &nonce)
	return nonce, err
}

func (s *State) incNonce(addr string) error {
	nonce, err := s.Nonce(addr)
	if err != nil {
		return err
	}
	val, err := rlp.EncodeToBytes(nonce + 1)
	if err != nil {
		return err
	}
	_, err = s.store.tree.Set([]byte(fmt.Sprintf(KeyAccountNonce, addr)), val)
	return err
}

func (s *State) GovParams() (p types.GovParams, err error) {
	_, err = s.store.getJSON(KeyGovParams, &p)
	return
}

func (s *State) Validators() (vals []Validator, err error) {
	_, err = s.store.getJSON(KeyValidators, &vals)
	return
}

func (s *State) validatorPower(addr string) (int64, error) {
	vals, err := s.Validators()
	if err != nil {
		return 0, err
	}
	for _, v := range vals {
		if v.Address == addr {
			return v.Power, nil
		}
	}
	return 0, nil
}

func (s *State) proposalMax() (uint64, error) {
	val, err := s.store.get([]byte(KeyProposalIndex))
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(val).Uint64(), nil
}

func (s *State) Proposal(id uint64) (*types.Proposal, error) {
	var p types.Proposal
	found, err := s.store.getJSON(fmt.Sprintf(KeyProposalBody, id), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProposalNotFound
	}
	return &p, nil
}

func (s *State) setProposal(p *types.Proposal) error {
	return s.store.setJSON(fmt.Sprintf(KeyProposalBody, p.Index), p)
}

// deleteProposal drops a proposal whose deposit period ended unfunded.
func (s *State) deleteProposal(id uint64) error {
	if err := s.store.remove(fmt.Sprintf(KeyProposalVotes, id)); err != nil {
		return err
	}
	return s.store.remove(fmt.Sprintf(KeyProposalBody, id))
}

func (s *State) addProposal(p *types.Proposal) error {
	last, err := s.proposalMax()
	if err != nil {
		return err
	}
	p.Index = last + 1
	if _, err = s.store.tree.Set([]byte(KeyProposalIndex), new(big.Int).SetUint64(p.Index).Bytes()); err != nil {
		return err
	}
	active, err := s.activeProposals()
	if err != nil {
		return err
	}
	if err = s.store.setJSON(KeyActive, append(active, p.Index)); err != nil {
		return err
	}
	return s.setProposal(p)
}

func (s *State) activeProposals() (ids []uint64, err error) {
	_, err = s.store.getJSON(KeyActive, &ids)
	return
}

func (s *State) setActiveProposals(ids []uint64) error {
	return s.store.setJSON(KeyActive, ids)
}

func (s *State) Votes(id uint64) (map[string]types.VoteOption, error) {
	votes := make(map[string]types.VoteOption)
	_, err := s.store.getJSON(fmt.Sprintf(KeyProposalVotes, id), &votes)
	return votes, err
}

func (s *State) setVote(id uint64, voter string, option types.VoteOption) error {
	votes, err := s.Votes(id)
	if err != nil {
		return err
	}
	votes[voter] = option
	return s.store.setJSON(fmt.Sprintf(KeyProposalVotes, id), votes)
}

func (s *State) AllowList() ([]string, error) {
	list := []string{}
	_, err := s.store.getJSON(KeyAllowList, &list)
	return list, err
}

func (s *State) IsAllowed(addr string) (bool, error) {
	list, err := s.AllowList()
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(list, addr)
	return i < len(list) && list[i] == addr, nil
}

// applyAllowList writes the resulting list in a single Set so a reader sees
// either the old or the new list.
func (s *State) applyAllowList(u *tx.AllowListUpdate) error {
	list, err := s.AllowList()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(list))
	switch u.Op {
	case tx.AllowListSet:
	default:
		for _, a := range list {
			set[a] = true
		}
	}
	for _, a := range u.Addresses {
		set[a] = u.Op != tx.AllowListRemove
	}
	next := make([]string, 0, len(set))
	for a, ok := range set {
		if ok {
			next = append(next, a)
		}
	}
	sort.Strings(next)
	return s.store.setJSON(KeyAllowList, next)
}

func (s *State) UpgradePlan() (*UpgradePlan, error) {
	var plan UpgradePlan
	found, err := s.store.getJSON(KeyUpgradePlan, &plan)
	if err != nil || !found {
		return nil, err
	}
	return &plan, nil
}

func (s *State) AppliedUpgrade() (*types.AppliedUpgrade, error) {
	var u types.AppliedUpgrade
	found, err := s.store.getJSON(KeyAppliedUpgrade, &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (s *State) PartialUpgrade() (*tx.PartialUpgrade, error) {
	var u tx.PartialUpgrade
	found, err := s.store.getJSON(KeyPartialUpgrade, &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (s *State) MLNodeVersion() (string, error) {
	var v types.MLNodeVersion
	found, err := s.store.getJSON(KeyMLNodeVersion, &v)
	if err != nil {
		return "", err
	}
	if !found || v.CurrentVersion == "" {
		return types.DefaultMLNodeVersion, nil
	}
	return v.CurrentVersion, nil
}

func (s *State) InferenceRoute() (types.InferenceRoute, error) {
	v, err := s.MLNodeVersion()
	if err != nil {
		return types.InferenceRoute{}, err
	}
	return types.InferenceRoute{Segment: "/" + v, Version: v}, nil
}

// GenesisNodeVersion is the binary version nodes run before any upgrade.
func (s *State) GenesisNodeVersion() (string, error) {
	var v string
	_, err := s.store.getJSON(KeyNodeVersion, &v)
	return v, err
}

func (s *State) initGenesis(doc *types.GenesisDoc, app *types.AppState) error {
	s.header = Header{ChainID: doc.ChainID, Height: uint64(doc.InitialHeight) - 1}
	vals := make([]Validator, len(doc.Validators))
	for i, v := range doc.Validators {
		vals[i] = Validator{Address: v.Address.String(), Power: v.Power}
	}
	if err := s.store.setJSON(KeyValidators, vals); err != nil {
		return err
	}
	if err := s.store.setJSON(KeyGovParams, app.Gov); err != nil {
		return err
	}
	list := append([]string(nil), app.AllowList...)
	sort.Strings(list)
	if err := s.store.setJSON(KeyAllowList, list); err != nil {
		return err
	}
	if err := s.store.setJSON(KeyNodeVersion, app.NodeVersion); err != nil {
		return err
	}
	if app.MLNodeVersion != "" {
		if err := s.store.setJSON(KeyMLNodeVersion, types.MLNodeVersion{CurrentVersion: app.MLNodeVersion}); err != nil {
			return err
		}
	}
	return s.saveHeader()
}

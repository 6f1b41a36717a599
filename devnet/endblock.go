package devnet

import (
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

func (app *App) endBlock(st *State) (events []abcitypes.Event, err error) {
	height := st.Header().Height
	params, err := st.GovParams()
	if err != nil {
		return nil, err
	}
	active, err := st.activeProposals()
	if err != nil {
		return nil, err
	}
	remaining := active[:0:0]
	for _, id := range active {
		p, err := st.Proposal(id)
		if err != nil {
			return nil, err
		}
		switch {
		case p.Status == types.ProposalStatusDepositPeriod && height >= p.DepositEndHeight:
			app.logger.Info("proposal deposit period ended", "proposal", id, "deposit", p.TotalDeposit)
			if err = st.deleteProposal(id); err != nil {
				return nil, err
			}
		case p.Status == types.ProposalStatusVotingPeriod && height >= p.VotingEndHeight:
			evs, err := app.finishVoting(st, p, params, height)
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		default:
			remaining = append(remaining, id)
		}
	}
	if len(remaining) != len(active) {
		if err = st.setActiveProposals(remaining); err != nil {
			return nil, err
		}
	}
	evs, err := app.applyUpgrades(st, height)
	if err != nil {
		return nil, err
	}
	return append(events, evs...), nil
}

func tally(st *State, p *types.Proposal, params types.GovParams) (res types.TallyResult, passed bool, err error) {
	vals, err := st.Validators()
	if err != nil {
		return
	}
	votes, err := st.Votes(p.Index)
	if err != nil {
		return
	}
	var total uint64
	power := make(map[string]uint64, len(vals))
	for _, v := range vals {
		power[v.Address] = uint64(v.Power)
		total += uint64(v.Power)
	}
	for voter, option := range votes {
		w := power[voter]
		switch option {
		case types.VoteOptionYes:
			res.Yes += w
		case types.VoteOptionNo:
			res.No += w
		case types.VoteOptionAbstain:
			res.Abstain += w
		case types.VoteOptionNoWithVeto:
			res.NoWithVeto += w
		}
	}
	voted := res.Total()
	if total == 0 || voted*100 < total*params.Quorum {
		return res, false, nil
	}
	if res.NoWithVeto*3 > voted {
		return res, false, nil
	}
	nonAbstain := res.Yes + res.No + res.NoWithVeto
	if nonAbstain == 0 {
		return res, false, nil
	}
	return res, res.Yes*100 > nonAbstain*params.Threshold, nil
}

func (app *App) finishVoting(st *State, p *types.Proposal, params types.GovParams, height uint64) (events []abcitypes.Event, err error) {
	result, passed, err := tally(st, p, params)
	if err != nil {
		return nil, err
	}
	p.FinalTally = result
	p.Status = types.ProposalStatusRejected
	if passed {
		p.Status = types.ProposalStatusPassed
		events, err = app.execute(st, p, height)
		if err != nil {
			app.logger.Error("proposal execution fail", "proposal", p.Index, "err", err)
			p.Status = types.ProposalStatusFailed
			events, err = nil, nil
		}
	}
	app.logger.Info("proposal finished", "proposal", p.Index, "status", p.Status, "yes", result.Yes, "no", result.No)
	return events, st.setProposal(p)
}

func (app *App) execute(st *State, p *types.Proposal, height uint64) ([]abcitypes.Event, error) {
	content, err := tx.DecodeContent(p.Kind, p.Content)
	if err != nil {
		return nil, err
	}
	switch c := content.(type) {
	case *tx.SoftwareUpgrade:
		if c.Height <= height {
			return nil, errUpgradeHeightPassed(c.Height, height)
		}
		return nil, st.store.setJSON(KeyUpgradePlan, UpgradePlan{Name: c.Name, Height: c.Height, Info: c.Info})
	case *tx.PartialUpgrade:
		if c.Height <= height {
			return nil, errUpgradeHeightPassed(c.Height, height)
		}
		return nil, st.store.setJSON(KeyPartialUpgrade, c)
	case *tx.AllowListUpdate:
		if err = st.applyAllowList(c); err != nil {
			return nil, err
		}
		list, err := st.AllowList()
		if err != nil {
			return nil, err
		}
		return []abcitypes.Event{types.EncodeEventAllowList(&types.EventAllowList{ProposalIndex: p.Index, Addresses: list})}, nil
	}
	return nil, nil
}

func errUpgradeHeightPassed(planned, height uint64) error {
	return fmt.Errorf("upgrade height %d is not above current height %d", planned, height)
}

// applyUpgrades activates scheduled plans once their height is reached.
func (app *App) applyUpgrades(st *State, height uint64) (events []abcitypes.Event, err error) {
	plan, err := st.UpgradePlan()
	if err != nil {
		return nil, err
	}
	if plan != nil && height >= plan.Height {
		applied := &types.AppliedUpgrade{Name: plan.Name, Height: height}
		if err = st.store.setJSON(KeyAppliedUpgrade, applied); err != nil {
			return nil, err
		}
		if err = st.store.remove(KeyUpgradePlan); err != nil {
			return nil, err
		}
		app.logger.Info("upgrade applied", "name", plan.Name, "height", height)
		events = append(events, types.EncodeEventUpgradeApplied(applied))
	}
	pu, err := st.PartialUpgrade()
	if err != nil {
		return nil, err
	}
	if pu != nil && height >= pu.Height {
		if pu.NodeVersion != "" {
			if err = st.store.setJSON(KeyMLNodeVersion, types.MLNodeVersion{CurrentVersion: pu.NodeVersion}); err != nil {
				return nil, err
			}
		}
		if err = st.store.remove(KeyPartialUpgrade); err != nil {
			return nil, err
		}
		app.logger.Info("partial upgrade applied", "version", pu.NodeVersion, "height", height)
		events = append(events, types.EncodeEventUpgradeApplied(&types.AppliedUpgrade{Name: "partial/" + pu.NodeVersion, Height: height}))
	}
	return events, nil
}

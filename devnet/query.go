package devnet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/gradosphera/gonka/types"
)

type Querier interface {
	Query(ctx context.Context, st *State, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

type QuerierFunc func(ctx context.Context, st *State, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error)

func (f QuerierFunc) Query(ctx context.Context, st *State, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	return f(ctx, st, req)
}

func notFound(format string, args ...any) *abcitypes.ResponseQuery {
	return &abcitypes.ResponseQuery{Code: types.QueryCodeNotFound, Log: fmt.Sprintf(format, args...)}
}

// valueQuerier answers with the JSON encoding of whatever get returns;
// a nil pointer result means nothing is stored.
func valueQuerier[T any](get func(st *State, data []byte) (T, error)) Querier {
	return QuerierFunc(func(ctx context.Context, st *State, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
		v, err := get(st, req.Data)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		if isNilPointer(v) {
			return notFound("nothing stored at %s", req.Path), nil
		}
		dat, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return &abcitypes.ResponseQuery{Value: dat, Height: int64(st.Header().Height)}, nil
	})
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *types.Proposal:
		return p == nil
	case *types.AppliedUpgrade:
		return p == nil
	case *UpgradePlan:
		return p == nil
	}
	return false
}

func (app *App) registerQuerier() {
	app.queriers = map[string]Querier{
		types.QueryAccount: valueQuerier(func(st *State, data []byte) (types.Account, error) {
			nonce, err := st.Nonce(string(data))
			return types.Account{Address: string(data), Nonce: nonce}, err
		}),
		types.QueryGovParams: valueQuerier(func(st *State, _ []byte) (types.GovParams, error) {
			return st.GovParams()
		}),
		types.QueryProposal: QuerierFunc(func(ctx context.Context, st *State, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
			id, err := types.ParseProposalQueryData(req.Data)
			if err != nil {
				return &abcitypes.ResponseQuery{Code: app.codes.InvalidRequest, Log: fmt.Sprintf("invalid proposal id %q", req.Data)}, nil
			}
			p, err := st.Proposal(id)
			if err == ErrProposalNotFound {
				return notFound("proposal %d not found", id), nil
			}
			return valueQuerier(func(*State, []byte) (*types.Proposal, error) { return p, err }).Query(ctx, st, req)
		}),
		types.QueryAllowList: valueQuerier(func(st *State, _ []byte) ([]string, error) {
			return st.AllowList()
		}),
		types.QueryMLNodeVersion: valueQuerier(func(st *State, _ []byte) (types.MLNodeVersion, error) {
			v, err := st.MLNodeVersion()
			return types.MLNodeVersion{CurrentVersion: v}, err
		}),
		types.QueryInferenceRoute: valueQuerier(func(st *State, _ []byte) (types.InferenceRoute, error) {
			return st.InferenceRoute()
		}),
		types.QueryAppliedUpgrade: valueQuerier(func(st *State, _ []byte) (*types.AppliedUpgrade, error) {
			return st.AppliedUpgrade()
		}),
		types.QueryUpgradePlan: valueQuerier(func(st *State, _ []byte) (*UpgradePlan, error) {
			return st.UpgradePlan()
		}),
	}
}

func (app *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		return notFound("unknown query path %s", req.Path), nil
	}
	return q.Query(ctx, app.st, req)
}

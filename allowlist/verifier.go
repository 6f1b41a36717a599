package allowlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

// Results maps sender address to the result of each probe kind.
type Results map[string]map[tx.MsgType]*chain.TxResult

type expectation string

const (
	expectRejected expectation = "rejected"
	expectAccepted expectation = "accepted"
)

// Verifier checks the training allow list end to end: it probes the
// chain with privileged messages and mutates the list through governance.
type Verifier struct {
	gov          *gov.Coordinator
	codes        chain.Codes
	blockTimeout time.Duration
	logger       cmtlog.Logger
}

func NewVerifier(g *gov.Coordinator, codes chain.Codes, blockTimeout time.Duration, logger cmtlog.Logger) *Verifier {
	return &Verifier{
		gov:          g,
		codes:        codes,
		blockTimeout: blockTimeout,
		logger:       logger.With("module", "allowlist"),
	}
}

// VerifyAllRejected sends the whole battery from every node and expects
// each probe to fail with the not-authorized code.
func (v *Verifier) VerifyAllRejected(ctx context.Context, nodes []cluster.Node) (Results, error) {
	return v.verify(ctx, nodes, expectRejected)
}

// VerifyAllAccepted expects no probe to fail authorization. Other
// rejections are tolerated.
func (v *Verifier) VerifyAllAccepted(ctx context.Context, nodes []cluster.Node) (Results, error) {
	return v.verify(ctx, nodes, expectAccepted)
}

func (v *Verifier) peer(n cluster.Node) string {
	for _, other := range v.gov.Cluster().AllPairs() {
		if other.Name() != n.Name() {
			return other.Client().Address()
		}
	}
	return ""
}

func (v *Verifier) verify(ctx context.Context, nodes []cluster.Node, expect expectation) (Results, error) {
	type nodeResults struct {
		results map[tx.MsgType]*chain.TxResult
		errs    []error
	}
	all := cluster.Broadcast(ctx, nodes, func(ctx context.Context, n cluster.Node) (*nodeResults, error) {
		nr := &nodeResults{results: make(map[tx.MsgType]*chain.TxResult, len(Kinds))}
		for _, msg := range Battery(n.Client().Address(), v.peer(n)) {
			res, err := v.probe(ctx, n, msg, expect)
			if res != nil {
				nr.results[msg.Type()] = res
			}
			if err != nil {
				nr.errs = append(nr.errs, err)
			}
		}
		return nr, nil
	})

	byName := make(map[string]cluster.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name()] = n
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(Results, len(all))
	var errs []error
	for _, name := range names {
		nr := all[name].Value
		results[byName[name].Client().Address()] = nr.results
		errs = append(errs, nr.errs...)
	}
	if len(errs) > 0 {
		v.logger.Error("allow list verification fail", "expect", expect, "failures", len(errs))
	} else {
		v.logger.Info("allow list verified", "expect", expect, "nodes", len(nodes))
	}
	return results, errors.Join(errs...)
}

func (v *Verifier) probe(ctx context.Context, n cluster.Node, msg tx.Msg, expect expectation) (*chain.TxResult, error) {
	cli := n.Client()
	kind := msg.Type()
	res, err := cli.Submit(ctx, msg)
	if err != nil {
		v.record(ctx, n, kind, expect, nil, err)
		return nil, &ProbeError{Node: n.Name(), Address: cli.Address(), Kind: kind, Err: err}
	}

	var failure error
	switch class := v.codes.Classify(res.Code); {
	case class == chain.InvalidRequest:
		failure = ErrMalformedProbe
	case expect == expectRejected && class != chain.NotAuthorized:
		failure = ErrNotRejected
	case expect == expectAccepted && class == chain.NotAuthorized:
		failure = ErrUnauthorized
	}
	v.record(ctx, n, kind, expect, res, failure)
	if failure != nil {
		return res, &ProbeError{
			Node:      n.Name(),
			Address:   cli.Address(),
			Kind:      kind,
			Code:      res.Code,
			Codespace: res.Codespace,
			Log:       res.RawLog,
			Err:       failure,
		}
	}
	return res, nil
}

func (v *Verifier) record(ctx context.Context, n cluster.Node, kind tx.MsgType, expect expectation, res *chain.TxResult, failure error) {
	row := &journal.Probe{
		ChainId:   v.gov.ChainID(ctx),
		Node:      n.Name(),
		Address:   n.Client().Address(),
		Kind:      kind.String(),
		Expect:    string(expect),
		Passed:    failure == nil,
		Timestamp: time.Now().Unix(),
	}
	if res != nil {
		row.Code = res.Code
		row.Class = v.codes.Classify(res.Code).String()
		row.Log = res.RawLog
		row.TxHash = res.TxHash
		row.Height = res.Height
	}
	if failure != nil && res == nil {
		row.Log = failure.Error()
	}
	if err := v.gov.Recorder().RecordProbe(row); err != nil {
		v.logger.Error("record probe fail", "node", n.Name(), "kind", kind, "err", err)
	}
}

// List reads the allow list from the genesis node.
func (v *Verifier) List(ctx context.Context) ([]string, error) {
	list, err := chain.QueryState[[]string](ctx, v.gov.Cluster().Genesis().Client(), types.QueryAllowList, nil)
	if err != nil {
		return nil, fmt.Errorf("query allow list: %w", err)
	}
	return list, nil
}

func (v *Verifier) Add(ctx context.Context, addr string) ([]string, error) {
	return v.mutate(ctx, tx.AllowListAdd, []string{addr})
}

func (v *Verifier) Remove(ctx context.Context, addr string) ([]string, error) {
	return v.mutate(ctx, tx.AllowListRemove, []string{addr})
}

// Replace swaps the whole list for addrs; the read-back must be exactly addrs.
func (v *Verifier) Replace(ctx context.Context, addrs []string) ([]string, error) {
	return v.mutate(ctx, tx.AllowListSet, addrs)
}

func (v *Verifier) mutate(ctx context.Context, op tx.AllowListOp, addrs []string) ([]string, error) {
	update := &tx.AllowListUpdate{Op: op, Addresses: addrs}
	if err := update.ValidateBasic(); err != nil {
		return nil, err
	}
	params, err := v.gov.Params(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gov params: %w", err)
	}
	out, err := v.gov.Run(ctx, &gov.Proposal{
		Title:          fmt.Sprintf("allow list %s", op),
		Content:        update,
		InitialDeposit: params.MinDeposit,
	})
	if err != nil {
		return nil, err
	}
	genesis := v.gov.Cluster().Genesis()
	if _, err = v.gov.Poller().AwaitNextBlock(ctx, genesis.Name(), genesis.Client(), v.blockTimeout); err != nil {
		return nil, err
	}

	got, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	if !holds(op, addrs, got) {
		return got, &MismatchError{Op: op, Want: addrs, Got: got}
	}
	v.logger.Info("allow list updated", "op", op, "proposal", out.ProposalID, "size", len(got))
	return got, nil
}

func holds(op tx.AllowListOp, addrs, got []string) bool {
	switch op {
	case tx.AllowListAdd:
		return slices.Contains(got, addrs[0])
	case tx.AllowListRemove:
		return !slices.Contains(got, addrs[0])
	case tx.AllowListSet:
		want := slices.Clone(addrs)
		have := slices.Clone(got)
		sort.Strings(want)
		sort.Strings(have)
		return slices.Equal(want, have)
	}
	return false
}

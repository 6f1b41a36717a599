package journal

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Recorder receives what the coordinators observe during a run.
type Recorder interface {
	RecordProposal(p *Proposal) error
	RecordVote(v *Vote) error
	RecordProbe(p *Probe) error
	RecordConvergence(c *Convergence) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordProposal(*Proposal) error       { return nil }
func (Nop) RecordVote(*Vote) error               { return nil }
func (Nop) RecordProbe(*Probe) error             { return nil }
func (Nop) RecordConvergence(*Convergence) error { return nil }

// Journal keeps the run history in a sqlite database.
type Journal struct {
	logger cmtlog.Logger
	mtx    sync.Mutex
	db     *gorm.DB
}

var _ Recorder = (*Journal)(nil)

func Open(dbPath string, logger cmtlog.Logger) (*Journal, error) {
	logger = logger.With("module", "journal")
	logger.Info("open journal", "dbPath", dbPath)
	if err := cmtos.EnsureDir(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &Vote{}, &Probe{}, &Convergence{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{logger: logger, db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordProposal inserts the proposal or updates the row for the same chain
// and proposal id.
func (j *Journal) RecordProposal(p *Proposal) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	now := time.Now().Unix()
	var existing Proposal
	err := j.db.Where("chain_id = ? AND proposal_id = ?", p.ChainId, p.ProposalId).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p.Id = 0
		p.CreateTimestamp, p.UpdateTimestamp = now, now
		return j.db.Create(p).Error
	case err != nil:
		return err
	}
	p.Id = existing.Id
	p.CreateTimestamp = existing.CreateTimestamp
	p.UpdateTimestamp = now
	if p.Kind == "" {
		p.Kind = existing.Kind
	}
	if p.Title == "" {
		p.Title = existing.Title
	}
	if p.Proposer == "" {
		p.Proposer = existing.Proposer
	}
	if p.TargetHeight == 0 {
		p.TargetHeight = existing.TargetHeight
	}
	return j.db.Save(p).Error
}

func (j *Journal) RecordVote(v *Vote) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	return j.db.Create(v).Error
}

func (j *Journal) RecordProbe(p *Probe) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().Unix()
	}
	return j.db.Create(p).Error
}

func (j *Journal) RecordConvergence(c *Convergence) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().Unix()
	}
	return j.db.Create(c).Error
}

func (j *Journal) getProposals(page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	err := j.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = j.db.Model(&Proposal{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (j *Journal) getProposalsByChain(chainId string, page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	err := j.db.Where("chain_id = ?", chainId).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = j.db.Model(&Proposal{}).Where("chain_id = ?", chainId).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (j *Journal) getProposal(chainId string, proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := j.db.Where("chain_id = ? AND proposal_id = ?", chainId, proposalId).First(&proposal).Error
	return proposal, err
}

func (j *Journal) getVotesByProposal(chainId string, proposalId uint64) ([]Vote, error) {
	votes := []Vote{}
	err := j.db.Where("chain_id = ? AND proposal_id = ?", chainId, proposalId).Order("id asc").Find(&votes).Error
	return votes, err
}

func (j *Journal) getProbesByAddress(address string, page int, pageSize int) ([]Probe, uint64, error) {
	var probes []Probe
	err := j.db.Where("address = ?", address).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&probes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = j.db.Model(&Probe{}).Where("address = ?", address).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return probes, total, nil
}

func (j *Journal) getConvergenceByProposal(chainId string, proposalId uint64) ([]Convergence, error) {
	rows := []Convergence{}
	err := j.db.Where("chain_id = ? AND proposal_id = ?", chainId, proposalId).Order("node asc, id asc").Find(&rows).Error
	return rows, err
}

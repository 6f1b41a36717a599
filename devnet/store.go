package devnet

import (
	"encoding/json"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
)

// Store is the versioned key/value tree behind the devnet; one version per block.
type Store struct {
	mtx    sync.RWMutex
	dir    string
	logger cmtlog.Logger
	db     dbm.DB
	tree   *iavl.MutableTree
}

// NewStore opens an on-disk tree under dir, or an in-memory tree when dir is empty.
func NewStore(dir string, logger cmtlog.Logger) (*Store, error) {
	logger = logger.With("module", "devnetdb")
	var (
		db  dbm.DB
		err error
	)
	if dir == "" {
		db = dbm.NewMemDB()
	} else {
		db, err = dbm.NewDB("devnet", "goleveldb", dir)
		if err != nil {
			return nil, err
		}
	}
	tree := iavl.NewMutableTree(db, 128, true, cometbft2CosmosLogger(logger))
	version, err := tree.Load()
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("load db success", "version", version)
	return &Store{
		dir:    dir,
		logger: logger,
		db:     db,
		tree:   tree,
	}, nil
}

// Close releases the tree and then the backing db; the tree leaves the db open.
func (s *Store) Close() error {
	if err := s.tree.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Store) Version() int64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.tree.Version()
}

func (s *Store) get(key []byte) ([]byte, error) {
	val, err := s.tree.Get(key)
	if err != nil {
		if err != leveldb.ErrNotFound {
			return nil, err
		}
		return nil, nil
	}
	return val, nil
}

func (s *Store) getJSON(key string, v any) (found bool, err error) {
	val, err := s.get([]byte(key))
	if err != nil || val == nil {
		return false, err
	}
	return true, json.Unmarshal(val, v)
}

func (s *Store) setJSON(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.tree.Set([]byte(key), val)
	return err
}

func (s *Store) remove(key string) error {
	_, _, err := s.tree.Remove([]byte(key))
	return err
}

// commit saves the working tree as a new version and returns the app hash.
func (s *Store) commit() (h common.Hash, err error) {
	hash, ver, err := s.tree.SaveVersion()
	if err != nil {
		s.tree.Rollback()
		return h, err
	}
	h = crypto.Keccak256Hash(hash)
	s.logger.Debug("saved version", "version", ver, "hash", h.Hex())
	return h, nil
}

func (s *Store) workingHash() common.Hash {
	return crypto.Keccak256Hash(s.tree.WorkingHash())
}

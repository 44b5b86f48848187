package store

import (
	"sync"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
)

// InmemStore keeps the bootstrap state in memory only. It is used for tests
// and for throwaway nodes that do not want to resume after a restart.
type InmemStore struct {
	sync.Mutex

	cacheSize  int
	record     *Record
	genesisDoc *genesis.Document
	peerSet    *peers.PeerSet
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize: cacheSize,
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetRecord implements the Store interface.
func (s *InmemStore) GetRecord() (*Record, error) {
	s.Lock()
	defer s.Unlock()

	if s.record == nil {
		return nil, common.NewError(common.KeyNotFound, "store.GetRecord", "record")
	}

	return s.record, nil
}

// SetRecord implements the Store interface.
func (s *InmemStore) SetRecord(r *Record) error {
	if r == nil {
		return common.NewError(common.InvalidArgument, "store.SetRecord", "nil record")
	}

	s.Lock()
	defer s.Unlock()

	s.record = r

	return nil
}

// GetGenesis implements the Store interface.
func (s *InmemStore) GetGenesis() (*genesis.Document, error) {
	s.Lock()
	defer s.Unlock()

	if s.genesisDoc == nil {
		return nil, common.NewError(common.KeyNotFound, "store.GetGenesis", "genesis")
	}

	return s.genesisDoc, nil
}

// SetGenesis implements the Store interface.
func (s *InmemStore) SetGenesis(doc *genesis.Document) error {
	if doc == nil {
		return common.NewError(common.InvalidArgument, "store.SetGenesis", "nil document")
	}

	s.Lock()
	defer s.Unlock()

	s.genesisDoc = doc

	return nil
}

// GetPeerSet implements the Store interface.
func (s *InmemStore) GetPeerSet() (*peers.PeerSet, error) {
	s.Lock()
	defer s.Unlock()

	if s.peerSet == nil {
		return nil, common.NewError(common.KeyNotFound, "store.GetPeerSet", "peers")
	}

	return s.peerSet, nil
}

// SetPeerSet implements the Store interface.
func (s *InmemStore) SetPeerSet(ps *peers.PeerSet) error {
	if ps == nil {
		return common.NewError(common.InvalidArgument, "store.SetPeerSet", "nil peer set")
	}

	s.Lock()
	defer s.Unlock()

	s.peerSet = ps

	return nil
}

// NeedBootstrap implements the Store interface. An InmemStore is always
// empty at startup.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

package store

import (
	"os"

	"github.com/dgraph-io/badger"
	cm "github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
)

const (
	recordKey  = "record"
	genesisKey = "genesis"
	peersKey   = "peers"
)

// BadgerStore wraps an InmemStore with a persistent Badger database. Writes
// go to both, reads are served from the cache and fall through to the db.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

//NewBadgerStore creates a brand new Store with a new database
func NewBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	inmemStore := NewInmemStore(cacheSize)

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: inmemStore,
		db:         handle,
		path:       path,
	}

	return store, nil
}

//LoadBadgerStore creates a Store from an existing database
func LoadBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore:    NewInmemStore(cacheSize),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	//load the saved state into the cache; a database without a record cannot
	//be resumed from
	record, err := store.dbGetRecord()
	if err != nil {
		store.db.Close()
		return nil, mapError(err, "store.LoadBadgerStore", recordKey)
	}

	if err := store.inmemStore.SetRecord(record); err != nil {
		store.db.Close()
		return nil, err
	}

	if doc, err := store.dbGetGenesis(); err == nil {
		store.inmemStore.SetGenesis(doc)
	}

	if peerSet, err := store.dbGetPeerSet(); err == nil {
		store.inmemStore.SetPeerSet(peerSet)
	}

	return store, nil
}

//LoadOrCreateBadgerStore attempts to load an existing database, and creates
//a new one if that fails
func LoadOrCreateBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(cacheSize, path)

	if err != nil {
		store, err = NewBadgerStore(cacheSize, path)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

//==============================================================================
//Implement the Store interface

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// GetRecord implements the Store interface.
func (s *BadgerStore) GetRecord() (*Record, error) {
	record, err := s.inmemStore.GetRecord()
	if err != nil {
		record, err = s.dbGetRecord()
	}
	return record, mapError(err, "store.GetRecord", recordKey)
}

// SetRecord implements the Store interface.
func (s *BadgerStore) SetRecord(r *Record) error {
	if err := s.inmemStore.SetRecord(r); err != nil {
		return err
	}
	return s.dbSetRecord(r)
}

// GetGenesis implements the Store interface.
func (s *BadgerStore) GetGenesis() (*genesis.Document, error) {
	doc, err := s.inmemStore.GetGenesis()
	if err != nil {
		doc, err = s.dbGetGenesis()
	}
	return doc, mapError(err, "store.GetGenesis", genesisKey)
}

// SetGenesis implements the Store interface.
func (s *BadgerStore) SetGenesis(doc *genesis.Document) error {
	if err := s.inmemStore.SetGenesis(doc); err != nil {
		return err
	}
	return s.dbSetGenesis(doc)
}

// GetPeerSet implements the Store interface.
func (s *BadgerStore) GetPeerSet() (*peers.PeerSet, error) {
	peerSet, err := s.inmemStore.GetPeerSet()
	if err != nil {
		peerSet, err = s.dbGetPeerSet()
	}
	return peerSet, mapError(err, "store.GetPeerSet", peersKey)
}

// SetPeerSet implements the Store interface.
func (s *BadgerStore) SetPeerSet(peerSet *peers.PeerSet) error {
	if err := s.inmemStore.SetPeerSet(peerSet); err != nil {
		return err
	}
	return s.dbSetPeerSet(peerSet)
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

//==============================================================================
//DB Methods

func (s *BadgerStore) dbGetRecord() (*Record, error) {
	var recordBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKey))
		if err != nil {
			return err
		}
		recordBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	record := new(Record)
	if err := record.Unmarshal(recordBytes); err != nil {
		return nil, err
	}

	return record, nil
}

func (s *BadgerStore) dbSetRecord(r *Record) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := r.Marshal()
	if err != nil {
		return err
	}

	if err := tx.Set([]byte(recordKey), val); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGetGenesis() (*genesis.Document, error) {
	var docBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(genesisKey))
		if err != nil {
			return err
		}
		docBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	doc := new(genesis.Document)
	if err := doc.Unmarshal(docBytes); err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *BadgerStore) dbSetGenesis(doc *genesis.Document) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := doc.Marshal()
	if err != nil {
		return err
	}

	if err := tx.Set([]byte(genesisKey), val); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGetPeerSet() (*peers.PeerSet, error) {
	var peerSliceBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(peersKey))
		if err != nil {
			return err
		}
		peerSliceBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	return peers.NewPeerSetFromPeerSliceBytes(peerSliceBytes)
}

func (s *BadgerStore) dbSetPeerSet(peerSet *peers.PeerSet) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := peerSet.Marshal()
	if err != nil {
		return err
	}

	if err := tx.Set([]byte(peersKey), val); err != nil {
		return err
	}

	return tx.Commit()
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, op, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewError(cm.KeyNotFound, op, key)
		}
	}
	return err
}

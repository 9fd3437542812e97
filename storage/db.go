package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the node. Raw keys hold node
// metadata (head root, height, ledger time) while the trie database stores the
// state trie nodes in the same backend.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// NewBatch returns a write batch whose puts land together on Write.
	NewBatch() ethdb.Batch
	TrieDB() *triedb.Database
	Close() error
}

// --- In-Memory DB (for testing) ---

// MemDB keeps everything in process memory.
type MemDB struct {
	kv     ethdb.Database
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	kv := rawdb.NewDatabase(memorydb.New())
	return &MemDB{
		kv:     kv,
		trieDB: triedb.NewDatabase(kv, triedb.HashDefaults),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	return db.kv.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	ok, err := db.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.kv.Get(key)
}

func (db *MemDB) Has(key []byte) (bool, error) {
	return db.kv.Has(key)
}

func (db *MemDB) NewBatch() ethdb.Batch {
	return db.kv.NewBatch()
}

// TrieDB exposes the trie node database layered over the memory store.
func (db *MemDB) TrieDB() *triedb.Database {
	return db.trieDB
}

func (db *MemDB) Close() error {
	return nil
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	raw    *gethleveldb.Database
	kv     ethdb.Database
	trieDB *triedb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path. cache
// is expressed in megabytes and handles bounds the number of open files.
func NewLevelDB(path string, cache, handles int) (*LevelDB, error) {
	if cache <= 0 {
		cache = 16
	}
	if handles <= 0 {
		handles = 16
	}
	raw, err := gethleveldb.New(path, cache, handles, "rentchain/db/", false)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %s: %w", path, err)
	}
	kv := rawdb.NewDatabase(raw)
	return &LevelDB{
		raw:    raw,
		kv:     kv,
		trieDB: triedb.NewDatabase(kv, triedb.HashDefaults),
	}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.kv.Put(key, value)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.kv.Has(key)
}

// NewBatch returns a LevelDB write batch; Write applies it atomically.
func (ldb *LevelDB) NewBatch() ethdb.Batch {
	return ldb.kv.NewBatch()
}

func (ldb *LevelDB) TrieDB() *triedb.Database {
	return ldb.trieDB
}

// Close flushes the trie database and closes the LevelDB handle.
func (ldb *LevelDB) Close() error {
	if err := ldb.trieDB.Close(); err != nil {
		_ = ldb.kv.Close()
		return err
	}
	return ldb.kv.Close()
}

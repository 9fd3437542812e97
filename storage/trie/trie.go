package trie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"rentchain/storage"
)

var errEmptyKey = errors.New("trie: key must not be empty")

// Trie is the ledger's state trie. Record keys are plain byte strings; the
// trie stores them under their keccak256 hash so key layout never leaks into
// the node structure.
//
// The node holds one committed Trie and forks a working copy for every call.
// A fork either commits on top of the root it was forked from or is dropped.
// Trie is not safe for concurrent use.
type Trie struct {
	nodes *triedb.Database
	mpt   *gethtrie.Trie
	base  common.Hash
}

// Open loads the trie committed at root. The zero hash opens an empty trie.
func Open(store storage.Database, root common.Hash) (*Trie, error) {
	if root == (common.Hash{}) {
		root = gethtypes.EmptyRootHash
	}
	nodes := store.TrieDB()
	mpt, err := gethtrie.New(gethtrie.TrieID(root), nodes)
	if err != nil {
		return nil, err
	}
	return &Trie{nodes: nodes, mpt: mpt, base: root}, nil
}

// Get returns the value stored for key, or nil when absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errEmptyKey
	}
	return t.mpt.Get(ethcrypto.Keccak256(key))
}

// Put stores value for key. An empty value removes the key.
func (t *Trie) Put(key, value []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	return t.mpt.Update(ethcrypto.Keccak256(key), value)
}

// Root is the committed root this trie was opened or forked at.
func (t *Trie) Root() common.Hash { return t.base }

// Pending is the root the trie would commit to right now.
func (t *Trie) Pending() common.Hash { return t.mpt.Hash() }

// Fork returns a working copy based on the committed root. Writes to the fork
// are invisible to t.
func (t *Trie) Fork() *Trie {
	return &Trie{nodes: t.nodes, mpt: t.mpt.Copy(), base: t.base}
}

// Commit writes the dirty nodes as the state at height, parented on the root
// the trie was forked from, and returns the new root. The trie keeps serving
// reads and further writes on top of the new root.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	root, dirty := t.mpt.Commit(false)
	if dirty != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(dirty); err != nil {
			return common.Hash{}, err
		}
		if err := t.nodes.Update(root, t.base, height, set, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.nodes.Commit(root, false); err != nil {
			return common.Hash{}, err
		}
	}
	mpt, err := gethtrie.New(gethtrie.TrieID(root), t.nodes)
	if err != nil {
		return common.Hash{}, err
	}
	t.mpt = mpt
	t.base = root
	return root, nil
}

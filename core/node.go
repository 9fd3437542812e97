package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/genesis"
	"rentchain/core/receipts"
	"rentchain/core/state"
	"rentchain/native/rental"
	"rentchain/storage"
	"rentchain/storage/trie"
)

var (
	headRootKey   = []byte("rentchain/head/root")
	headHeightKey = []byte("rentchain/head/height")

	// ErrNoGenesis is returned when an empty database is opened without a
	// genesis spec.
	ErrNoGenesis = errors.New("core: database is empty and no genesis was supplied")
	// ErrBadNonce reports an envelope whose nonce does not match the account.
	ErrBadNonce = errors.New("core: invalid nonce")
	// ErrNotAdmin is returned by admin-only node operations.
	ErrNotAdmin = fmt.Errorf("%w: caller is not the chain admin", coreerrors.ErrUnauthorized)
)

// CallObserver receives the outcome of every mutating call. kind is
// KindUnknown for successful calls and for unclassified failures.
type CallObserver interface {
	ObserveCall(method string, ok bool, kind coreerrors.Kind, elapsed time.Duration)
}

// receiptWriter persists receipts. *receipts.Store satisfies it.
type receiptWriter interface {
	Put(r *receipts.Receipt) error
	Get(txHash string) (*receipts.Receipt, error)
	Since(height uint64, limit int) ([]*receipts.Receipt, error)
}

// Options tune the engines the node builds for every execution unit.
type Options struct {
	Policy         rental.Policy
	MinStayFloor   uint32
	RewardsEnabled bool
	// Now overrides the wall clock feeding ledger time.
	Now    func() int64
	Logger *slog.Logger
}

// Node owns the committed state and serialises every mutating call.
type Node struct {
	db         storage.Database
	trie       *trie.Trie
	stateMu    sync.Mutex
	height     uint64
	ledgerTime uint64
	opts       Options
	logger     *slog.Logger

	emitter  events.Emitter
	receipts receiptWriter
	observer CallObserver

	streamMu      sync.Mutex
	streamSubs    map[uint64]chan StreamEvent
	streamSeq     uint64
	streamNextID  uint64
	streamHistory []StreamEvent
}

// NewNode opens the chain stored in db. An empty database is initialised from
// spec.
func NewNode(db storage.Database, spec *genesis.Spec, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().Unix() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		db:      db,
		opts:    opts,
		logger:  logger.With("component", "node"),
		emitter: events.NoopEmitter{},
	}

	root, height, ok, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	if !ok {
		if spec == nil {
			return nil, ErrNoGenesis
		}
		result, err := genesis.Build(spec, db)
		if err != nil {
			return nil, fmt.Errorf("core: build genesis: %w", err)
		}
		root, height = result.StateRoot, 0
		if err := storeHead(db, root, height); err != nil {
			return nil, err
		}
		n.logger.Info("genesis committed", "root", root.Hex(), "admin", result.Admin.String())
	}
	tr, err := trie.Open(db, root)
	if err != nil {
		return nil, fmt.Errorf("core: open state trie: %w", err)
	}
	ledgerTime, err := state.NewManager(tr).LedgerTime()
	if err != nil {
		return nil, err
	}
	n.trie = tr
	n.height = height
	n.ledgerTime = ledgerTime
	return n, nil
}

// SetEmitter registers the downstream consumer of committed events, such as
// the indexer or metrics. The node's own stream is always fed.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetReceiptStore enables receipt persistence.
func (n *Node) SetReceiptStore(store receiptWriter) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.receipts = store
}

// SetObserver registers a call observer, typically the metrics registry.
func (n *Node) SetObserver(observer CallObserver) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.observer = observer
}

// Status summarises the committed head.
type Status struct {
	Height        uint64
	StateRoot     common.Hash
	LedgerTime    uint64
	PausedModules []string
	Policy        rental.Policy
	Rewards       bool
}

// Status reports the committed head.
func (n *Node) Status() Status {
	n.stateMu.Lock()
	snapshot := n.trie.Fork()
	status := Status{
		Height:     n.height,
		StateRoot:  n.trie.Root(),
		LedgerTime: n.ledgerTime,
		Policy:     n.opts.Policy,
		Rewards:    n.opts.RewardsEnabled,
	}
	n.stateMu.Unlock()
	status.PausedModules = state.NewManager(snapshot).PausedModules()
	return status
}

// Height returns the committed height.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.height
}

// Close closes the underlying database.
func (n *Node) Close() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.db.Close()
}

// nextLedgerTime never moves backwards even if the wall clock does.
func (n *Node) nextLedgerTime() uint64 {
	wall := n.opts.Now()
	if wall < 0 {
		wall = 0
	}
	if uint64(wall) > n.ledgerTime {
		return uint64(wall)
	}
	return n.ledgerTime
}

func loadHead(db storage.Database) (common.Hash, uint64, bool, error) {
	rawRoot, err := db.Get(headRootKey)
	if errors.Is(err, storage.ErrNotFound) {
		return common.Hash{}, 0, false, nil
	}
	if err != nil {
		return common.Hash{}, 0, false, fmt.Errorf("core: load head root: %w", err)
	}
	rawHeight, err := db.Get(headHeightKey)
	if err != nil {
		return common.Hash{}, 0, false, fmt.Errorf("core: load head height: %w", err)
	}
	if len(rawHeight) != 8 {
		return common.Hash{}, 0, false, fmt.Errorf("core: corrupt head height")
	}
	return common.BytesToHash(rawRoot), binary.BigEndian.Uint64(rawHeight), true, nil
}

// storeHead writes root and height in one batch so a crash never leaves a
// height that does not match its root.
func storeHead(db storage.Database, root common.Hash, height uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	batch := db.NewBatch()
	if err := batch.Put(headRootKey, root.Bytes()); err != nil {
		return fmt.Errorf("core: stage head root: %w", err)
	}
	if err := batch.Put(headHeightKey, buf[:]); err != nil {
		return fmt.Errorf("core: stage head height: %w", err)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("core: persist head: %w", err)
	}
	return nil
}

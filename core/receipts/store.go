package receipts

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"rentchain/core/types"
)

var (
	bucketReceipts = []byte("receipts")
	bucketByHeight = []byte("by-height")

	// ErrNotFound is returned when no receipt exists for a hash.
	ErrNotFound = errors.New("receipt not found")
)

// Receipt is the persisted outcome of one signed envelope.
type Receipt struct {
	TxHash    string         `json:"txHash"`
	Method    string         `json:"method"`
	From      string         `json:"from"`
	Nonce     uint64         `json:"nonce"`
	Height    uint64         `json:"height"`
	StateRoot string         `json:"stateRoot"`
	Success   bool           `json:"success"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Events    []*types.Event `json:"events,omitempty"`
	Timestamp uint64         `json:"timestamp"`
}

// Store keeps receipts in a BoltDB file next to the chain data.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the receipt database at path.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketReceipts, bucketByHeight} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a receipt keyed by its transaction hash and indexes it by height.
func (s *Store) Put(r *Receipt) error {
	if r == nil || r.TxHash == "" {
		return errors.New("receipts: tx hash required")
	}
	encoded, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketReceipts).Put([]byte(r.TxHash), encoded); err != nil {
			return err
		}
		return tx.Bucket(bucketByHeight).Put(heightKey(r.Height), []byte(r.TxHash))
	})
}

// Get returns the receipt of a transaction hash.
func (s *Store) Get(txHash string) (*Receipt, error) {
	var receipt Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get([]byte(txHash))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Since returns up to limit receipts committed after height, in height order.
func (s *Store) Since(height uint64, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		c := tx.Bucket(bucketByHeight).Cursor()
		for k, v := c.Seek(heightKey(height + 1)); k != nil && len(out) < limit; k, v = c.Next() {
			raw := receipts.Get(v)
			if raw == nil {
				continue
			}
			var r Receipt
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			out = append(out, &r)
		}
		return nil
	})
	return out, err
}

// HashString renders a transaction hash the way receipts are keyed.
func HashString(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}

func heightKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return buf[:]
}

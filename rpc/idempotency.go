package rpc

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const idempotencyHeader = "Idempotency-Key"

// ErrIdempotencyConflict indicates a key reused with a different payload.
var ErrIdempotencyConflict = errors.New("rpc: idempotency key reused with a different request")

// IdempotencyStore remembers the response of each Idempotency-Key so a
// retried submission is answered without executing twice.
type IdempotencyStore struct {
	db *sql.DB
}

// StoredResponse is a cached response.
type StoredResponse struct {
	RequestID string
	Status    int
	Body      []byte
}

// OpenIdempotencyStore opens or creates the sqlite cache at path.
func OpenIdempotencyStore(path string) (*IdempotencyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	const schema = `CREATE TABLE IF NOT EXISTS idempotency_keys (
            key TEXT PRIMARY KEY,
            request_id TEXT NOT NULL,
            request_hash TEXT NOT NULL,
            response_status INTEGER NOT NULL,
            response_body BLOB NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &IdempotencyStore{db: db}, nil
}

func (s *IdempotencyStore) Close() error { return s.db.Close() }

// Lookup returns the cached response for key, nil when absent, or
// ErrIdempotencyConflict when the key was used for another request.
func (s *IdempotencyStore) Lookup(ctx context.Context, key, hash string) (*StoredResponse, error) {
	const query = `SELECT request_id, response_status, response_body, request_hash FROM idempotency_keys WHERE key = ?`
	var (
		resp       StoredResponse
		storedHash string
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&resp.RequestID, &resp.Status, &resp.Body, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if storedHash != hash {
		return nil, ErrIdempotencyConflict
	}
	return &resp, nil
}

// Save records the response for key.
func (s *IdempotencyStore) Save(ctx context.Context, key, hash string, resp StoredResponse) error {
	const stmt = `INSERT OR IGNORE INTO idempotency_keys(key, request_id, request_hash, response_status, response_body, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, key, resp.RequestID, hash, resp.Status, resp.Body, time.Now().UTC())
	return err
}

// Prune drops entries older than maxAge.
func (s *IdempotencyStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < ?`, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}

// withIdempotency replays the stored response of a repeated Idempotency-Key.
// Server errors are not cached so the client can retry them.
func (s *Server) withIdempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" || s.idempotency == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusRequestEntityTooLarge, nil, &RPCError{Code: codeInvalidRequest, Message: "failed to read request body", Data: err.Error()})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := hex.EncodeToString(ethcrypto.Keccak256(body))

		stored, err := s.idempotency.Lookup(r.Context(), key, hash)
		if errors.Is(err, ErrIdempotencyConflict) {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusConflict, nil, &RPCError{Code: codeInvalidRequest, Message: err.Error()})
			return
		}
		if err != nil {
			s.logger.Error("idempotency lookup failed", "error", err)
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Request-ID", stored.RequestID)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			return
		}
		requestID := w.Header().Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		resp := StoredResponse{RequestID: requestID, Status: status, Body: rec.buf.Bytes()}
		if err := s.idempotency.Save(r.Context(), key, hash, resp); err != nil {
			s.logger.Error("idempotency save failed", "error", err)
		}
	})
}

package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Payment is one row of an agreement's escrow ledger as exported to
// accounting tools.
type Payment struct {
	PaymentID   string `json:"payment_id"`
	AgreementID string `json:"agreement_id"`
	Sequence    uint64 `json:"sequence"`
	Type        string `json:"type"`
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Timestamp   uint64 `json:"timestamp"`
}

var csvHeader = []string{"agreement_id", "sequence", "payment_id", "type", "payer", "payee", "amount", "timestamp", "recorded_at"}

// sorted orders payments by agreement then ledger sequence.
func sorted(payments []Payment) []Payment {
	out := append([]Payment(nil), payments...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AgreementID != out[j].AgreementID {
			return out[i].AgreementID < out[j].AgreementID
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

func recordedAt(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// PaymentsCSV serialises payments and returns the SHA-256 checksum of the
// payload.
func PaymentsCSV(payments []Payment) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, p := range sorted(payments) {
		record := []string{
			p.AgreementID,
			strconv.FormatUint(p.Sequence, 10),
			p.PaymentID,
			p.Type,
			p.Payer,
			p.Payee,
			amountOrZero(p.Amount),
			strconv.FormatUint(p.Timestamp, 10),
			recordedAt(p.Timestamp),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

// PaymentsJSONL serialises payments as JSON Lines with a checksum.
func PaymentsJSONL(payments []Payment) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, p := range sorted(payments) {
		p.Amount = amountOrZero(p.Amount)
		if err := encoder.Encode(p); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

// Manifest lists the files of an export bundle with their checksums.
type Manifest struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Rows        int               `json:"rows"`
	Files       map[string]string `json:"files"`
}

// WriteBundle writes <name>.csv, <name>.jsonl, <name>.parquet and a
// <name>.manifest.json under dir.
func WriteBundle(dir, name string, payments []Payment) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exports: create dir: %w", err)
	}
	manifest := &Manifest{
		GeneratedAt: time.Now().UTC(),
		Rows:        len(payments),
		Files:       make(map[string]string, 3),
	}
	encoders := []struct {
		ext    string
		encode func([]Payment) ([]byte, string, error)
	}{
		{".csv", PaymentsCSV},
		{".jsonl", PaymentsJSONL},
	}
	for _, enc := range encoders {
		data, sum, err := enc.encode(payments)
		if err != nil {
			return nil, err
		}
		filename := name + enc.ext
		if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
			return nil, fmt.Errorf("exports: write %s: %w", filename, err)
		}
		manifest.Files[filename] = sum
	}
	parquetName := name + ".parquet"
	parquetPath := filepath.Join(dir, parquetName)
	if err := WriteParquet(parquetPath, payments); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(parquetPath)
	if err != nil {
		return nil, err
	}
	manifest.Files[parquetName] = checksum(data)

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".manifest.json"), encoded, 0o644); err != nil {
		return nil, fmt.Errorf("exports: write manifest: %w", err)
	}
	return manifest, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func amountOrZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

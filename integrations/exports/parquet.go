package exports

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetPayment struct {
	AgreementID string `parquet:"name=agreement_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence    int64  `parquet:"name=sequence, type=INT64"`
	PaymentID   string `parquet:"name=payment_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type        string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payer       string `parquet:"name=payer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payee       string `parquet:"name=payee, type=BYTE_ARRAY, convertedtype=UTF8"`
	// Amounts exceed int64 so they travel as decimal strings.
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64"`
}

// WriteParquet writes payments to path with snappy compression.
func WriteParquet(path string, payments []Payment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetPayment), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, p := range sorted(payments) {
		row := &parquetPayment{
			AgreementID: p.AgreementID,
			Sequence:    int64(p.Sequence),
			PaymentID:   p.PaymentID,
			Type:        p.Type,
			Payer:       p.Payer,
			Payee:       p.Payee,
			Amount:      amountOrZero(p.Amount),
			Timestamp:   int64(p.Timestamp),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exports: close parquet file: %w", err)
	}
	return nil
}

// ReadParquet loads a file written by WriteParquet.
func ReadParquet(path string) ([]Payment, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("exports: open parquet: %w", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetPayment), 1)
	if err != nil {
		return nil, fmt.Errorf("exports: parquet reader: %w", err)
	}
	defer pr.ReadStop()
	rows := make([]parquetPayment, int(pr.GetNumRows()))
	if len(rows) > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("exports: parquet read: %w", err)
		}
	}
	out := make([]Payment, 0, len(rows))
	for _, row := range rows {
		out = append(out, Payment{
			PaymentID:   row.PaymentID,
			AgreementID: row.AgreementID,
			Sequence:    uint64(row.Sequence),
			Type:        row.Type,
			Payer:       row.Payer,
			Payee:       row.Payee,
			Amount:      row.Amount,
			Timestamp:   uint64(row.Timestamp),
		})
	}
	return out, nil
}

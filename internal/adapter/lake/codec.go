package lake

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const parallelism = 4

// encode renders rows as one Snappy-compressed Parquet file held in memory.
func encode[R any](rows []R) ([]byte, error) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, new(R), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return nil, fmt.Errorf("failed to write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// decode reads every row of a Parquet file.
func decode[R any](data []byte) ([]R, error) {
	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), new(R), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]R, n)
	if n == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read %d parquet rows: %w", n, err)
	}
	return rows, nil
}

// numRows reads the row count from the file footer without decoding rows.
func numRows(data []byte) (int64, error) {
	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), nil, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer pr.ReadStop()
	return pr.GetNumRows(), nil
}

package lake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/medallion/internal/domain"
)

const maxBronzeLine = 16 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress returns data unchanged unless it starts with a gzip or zstd
// frame header, in which case the whole payload is inflated.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd bronze batch: %w", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to inflate zstd bronze batch: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip bronze batch: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to inflate gzip bronze batch: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// DecodeBronze parses a newline-delimited JSON batch. Numbers are kept as
// json.Number so that typing happens in one place. A line that is not valid
// JSON becomes an empty record, which validation later rejects, and is
// counted in the second return value. A line holding a JSON array
// contributes each of its objects. Gzip and zstd payloads are inflated first.
func DecodeBronze(data []byte) ([]domain.Record, int, error) {
	data, err := decompress(data)
	if err != nil {
		return nil, 0, err
	}

	var (
		records   []domain.Record
		malformed int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxBronzeLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '[' {
			var batch []domain.Record
			if err := unmarshalNumbers(line, &batch); err != nil {
				records = append(records, domain.Record{})
				malformed++
				continue
			}
			records = append(records, batch...)
			continue
		}
		var rec domain.Record
		if err := unmarshalNumbers(line, &rec); err != nil || rec == nil {
			records = append(records, domain.Record{})
			malformed++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to scan bronze batch: %w", err)
	}
	return records, malformed, nil
}

// EncodeBronze renders records as newline-delimited JSON.
func EncodeBronze(records []domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to encode bronze record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

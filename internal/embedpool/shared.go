package embedpool

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// WriteSharedBuffer serializes rows of float32 values in row-major order to
// path: the on-disk stand-in for the cross-process shared-memory buffer the
// embed_batch_shared transport names (spec §6). The worker writes it; the
// parent reads it back with ReadSharedBuffer.
func WriteSharedBuffer(path string, rows [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("embedpool: create shared buffer %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 4)
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := f.Write(buf); err != nil {
				return fmt.Errorf("embedpool: write shared buffer %s: %w", path, err)
			}
		}
	}
	return nil
}

// ReadSharedBuffer reads back count rows of dimension float32 values each
// from path, the inverse of WriteSharedBuffer.
func ReadSharedBuffer(path string, count, dimension int) ([][]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("embedpool: read shared buffer %s: %w", path, err)
	}
	want := count * dimension * 4
	if len(raw) != want {
		return nil, fmt.Errorf("embedpool: shared buffer %s: got %d bytes, want %d", path, len(raw), want)
	}

	rows := make([][]float32, count)
	for i := 0; i < count; i++ {
		row := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			off := (i*dimension + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4]))
		}
		rows[i] = row
	}
	return rows, nil
}

package chunker

import "github.com/cortexlabs/cortex-core/internal/model"

// chunkFixedWindow is the fallback for languages with no dedicated
// dispatch rule: fixed-size non-overlapping line windows.
func chunkFixedWindow(lines []string, size int) []rawChunk {
	if size <= 0 {
		size = 50
	}
	var chunks []rawChunk
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, rawChunk{
			startLine: start + 1,
			endLine:   end,
			kind:      model.ChunkGeneric,
		})
	}
	return chunks
}

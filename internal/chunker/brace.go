package chunker

import (
	"regexp"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

var (
	funcDeclPattern      = regexp.MustCompile(`^\s*(?:(?:export|public|private|protected|static|async|final)\s+)*(?:func|function|def)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	classDeclPattern     = regexp.MustCompile(`^\s*(?:(?:export|public|private|protected|abstract|final)\s+)*(?:class|struct|interface)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	importExportPattern  = regexp.MustCompile(`^\s*(import|export|package|use|require|#include)\b`)
)

// chunkBraceLanguage performs a single pass tracking nested brace depth. A
// chunk opens at a function or class declaration line seen at top-level
// (depth 0) and closes on the first subsequent line where depth returns to
// 0. Top-level import/export lines become single-line config chunks.
func chunkBraceLanguage(lines []string, language string) []rawChunk {
	var chunks []rawChunk
	depth := 0
	var open *rawChunk

	for i, line := range lines {
		lineNo := i + 1

		if open == nil && depth == 0 {
			if importExportPattern.MatchString(line) {
				chunks = append(chunks, rawChunk{startLine: lineNo, endLine: lineNo, kind: model.ChunkConfig})
			} else if m := funcDeclPattern.FindStringSubmatch(line); m != nil {
				open = &rawChunk{startLine: lineNo, kind: model.ChunkFunction, symbol: m[1]}
			} else if m := classDeclPattern.FindStringSubmatch(line); m != nil {
				open = &rawChunk{startLine: lineNo, kind: model.ChunkClass, symbol: m[1]}
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}

		if open != nil && depth == 0 && lineNo > open.startLine {
			open.endLine = lineNo
			chunks = append(chunks, *open)
			open = nil
		}
	}

	if open != nil {
		open.endLine = len(lines)
		chunks = append(chunks, *open)
	}

	return chunks
}

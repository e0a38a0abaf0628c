package chunker

import (
	"regexp"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

var (
	pyDefPattern   = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyClassPattern = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// chunkIndentLanguage opens a chunk at a def/class line and closes it when
// indentation returns to at or below the opening indent on a non-blank,
// non-comment line.
func chunkIndentLanguage(lines []string) []rawChunk {
	var chunks []rawChunk
	var open *rawChunk
	openIndent := 0

	for i, line := range lines {
		lineNo := i + 1

		if open != nil {
			if isSignificant(line) && indentOf(line) <= openIndent {
				open.endLine = lineNo - 1
				chunks = append(chunks, *open)
				open = nil
			}
		}

		if open == nil {
			if m := pyDefPattern.FindStringSubmatch(line); m != nil {
				openIndent = len(m[1])
				open = &rawChunk{startLine: lineNo, kind: model.ChunkFunction, symbol: m[2]}
				continue
			}
			if m := pyClassPattern.FindStringSubmatch(line); m != nil {
				openIndent = len(m[1])
				open = &rawChunk{startLine: lineNo, kind: model.ChunkClass, symbol: m[2]}
				continue
			}
		}
	}

	if open != nil {
		open.endLine = len(lines)
		chunks = append(chunks, *open)
	}

	return chunks
}

func isSignificant(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

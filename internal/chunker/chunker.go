// Package chunker splits a file's content into semantic chunks (function,
// class, config, documentation, or generic) with symbol metadata, dispatched
// by language family: brace-depth tracking, indentation tracking, markdown
// headings, or a fixed-line-window fallback for unrecognized languages.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

// windowSize is the fallback chunk size, in lines, for languages with no
// dedicated dispatch rule.
const windowSize = 50

// Options configures chunk target sizes; markdown section splitting uses
// DocChunkSize as its token budget the same way the brace/indent splitters
// use line spans.
type Options struct {
	CodeChunkSize int
	DocChunkSize  int
}

// DefaultOptions mirrors config.Default()'s chunking section.
func DefaultOptions() Options {
	return Options{CodeChunkSize: 2000, DocChunkSize: 800}
}

// Chunker splits file content into model.Chunk values.
type Chunker struct {
	opts Options
}

// New creates a Chunker with the given options.
func New(opts Options) *Chunker {
	return &Chunker{opts: opts}
}

// Chunk splits content from filePath into an ordered chunk list. language is
// the result of the content analyzer's detection; coChangeFiles and commit
// are optional enrichments attached to every chunk produced from this file.
func (c *Chunker) Chunk(filePath, language, content string, commit *model.CommitInfo, coChangeFiles []string) []*model.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var raw []rawChunk

	switch family(language) {
	case familyBrace:
		raw = chunkBraceLanguage(lines, language)
	case familyIndent:
		raw = chunkIndentLanguage(lines)
	case familyMarkdown:
		raw = chunkMarkdown(lines, c.opts.DocChunkSize)
	default:
		raw = chunkFixedWindow(lines, windowSize)
	}

	if len(raw) == 0 {
		raw = []rawChunk{{startLine: 1, endLine: len(lines), kind: model.ChunkGeneric}}
	}

	chunks := make([]*model.Chunk, 0, len(raw))
	for _, rc := range raw {
		text := strings.Join(lines[rc.startLine-1:rc.endLine], "\n")
		chunk := &model.Chunk{
			ID:          chunkID(filePath, rc.startLine),
			FilePath:    filePath,
			SymbolName:  rc.symbol,
			Kind:        rc.kind,
			StartLine:   rc.startLine,
			EndLine:     rc.endLine,
			Content:     text,
			ContentHash: contentHash(text),
			Language:    language,
			Complexity:  complexityScore(text),
			Imports:     extractImports(text, language),
			Exports:     extractExports(text, language),
			Calls:       extractCalls(text),
			CoChange:    coChangeFiles,
			LastCommit:  commit,
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func chunkID(filePath string, startLine int) string {
	return filePath + ":" + strconv.Itoa(startLine)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

// normalize strips trailing whitespace per line and trailing blank lines so
// that two semantically-identical reads of the same bytes always hash the
// same way even if line endings differ.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

var (
	callPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	// keywords that are control flow, not function calls, and must be
	// excluded from the call-identifier list.
	callKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"return": true, "func": true, "function": true, "def": true, "class": true,
	}
	branchKeywords = regexp.MustCompile(`\b(?:if|else|for|while|case|catch|switch|and|or)\b|\|\||&&|\?\?`)
)

func extractCalls(text string) []string {
	matches := callPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var calls []string
	for _, m := range matches {
		name := m[1]
		if callKeywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
	}
	return calls
}

// complexityScore is a cyclomatic-proxy: one plus the count of branch and
// boolean-operator keywords found in the text.
func complexityScore(text string) int {
	return 1 + len(branchKeywords.FindAllString(text, -1))
}

package chunker

import (
	"regexp"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

var headerPattern = regexp.MustCompile(`^##\s+`)
var codeFencePattern = regexp.MustCompile("^```")

// chunkMarkdown partitions a document by level-2 headings, then by
// paragraph (blank-line-delimited, code-fence-aware) when a section exceeds
// targetTokens, mirroring the section/paragraph cascade used for long-form
// documentation chunking elsewhere in the pack.
func chunkMarkdown(lines []string, targetTokens int) []rawChunk {
	if targetTokens <= 0 {
		targetTokens = 800
	}

	var chunks []rawChunk
	for _, sec := range splitByHeaders(lines) {
		chunks = append(chunks, splitSection(sec, targetTokens)...)
	}
	return chunks
}

type mdSection struct {
	startLine int // 1-based
	lines     []string
}

func splitByHeaders(lines []string) []mdSection {
	var sections []mdSection
	current := mdSection{startLine: 1}

	for i, line := range lines {
		if headerPattern.MatchString(line) && i > 0 {
			if len(current.lines) > 0 {
				sections = append(sections, current)
			}
			current = mdSection{startLine: i + 1, lines: []string{line}}
		} else {
			current.lines = append(current.lines, line)
		}
	}
	if len(current.lines) > 0 {
		sections = append(sections, current)
	}
	return sections
}

func splitSection(sec mdSection, targetTokens int) []rawChunk {
	text := strings.Join(sec.lines, "\n")
	if estimateTokens(text) <= targetTokens {
		return []rawChunk{{
			startLine: sec.startLine,
			endLine:   sec.startLine + len(sec.lines) - 1,
			kind:      model.ChunkDocumentation,
		}}
	}
	return splitByParagraphs(sec, targetTokens)
}

type mdParagraph struct {
	startLine, endLine int
}

func splitByParagraphs(sec mdSection, targetTokens int) []rawChunk {
	paragraphs := extractParagraphs(sec.lines, sec.startLine)

	var chunks []rawChunk
	var current []mdParagraph
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, rawChunk{
			startLine: current[0].startLine,
			endLine:   current[len(current)-1].endLine,
			kind:      model.ChunkDocumentation,
		})
		current = nil
		currentTokens = 0
	}

	for _, p := range paragraphs {
		size := p.endLine - p.startLine + 1
		tokens := size * 10 // rough line->token proxy, paragraph granularity

		if currentTokens > 0 && currentTokens+tokens > targetTokens {
			flush()
		}
		current = append(current, p)
		currentTokens += tokens
	}
	flush()

	if len(chunks) == 0 {
		chunks = append(chunks, rawChunk{startLine: sec.startLine, endLine: sec.startLine + len(sec.lines) - 1, kind: model.ChunkDocumentation})
	}
	return chunks
}

// extractParagraphs groups lines into blank-line-delimited paragraphs,
// treating fenced code blocks as a single paragraph that is never split.
func extractParagraphs(lines []string, startLine int) []mdParagraph {
	var paragraphs []mdParagraph
	var start int
	inCode := false
	haveContent := false

	for i, line := range lines {
		lineNo := startLine + i

		if codeFencePattern.MatchString(line) {
			if !inCode {
				if haveContent {
					paragraphs = append(paragraphs, mdParagraph{startLine: start, endLine: lineNo - 1})
				}
				inCode = true
				start = lineNo
				haveContent = true
			} else {
				paragraphs = append(paragraphs, mdParagraph{startLine: start, endLine: lineNo})
				inCode = false
				haveContent = false
			}
			continue
		}

		if inCode {
			continue
		}

		if strings.TrimSpace(line) == "" {
			if haveContent {
				paragraphs = append(paragraphs, mdParagraph{startLine: start, endLine: lineNo - 1})
				haveContent = false
			}
			continue
		}

		if !haveContent {
			start = lineNo
			haveContent = true
		}
	}

	if haveContent {
		paragraphs = append(paragraphs, mdParagraph{startLine: start, endLine: startLine + len(lines) - 1})
	}
	return paragraphs
}

func estimateTokens(text string) int {
	return len(text) / 4
}

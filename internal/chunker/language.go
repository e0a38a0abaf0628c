package chunker

import (
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

type langFamily int

const (
	familyUnknown langFamily = iota
	familyBrace
	familyIndent
	familyMarkdown
)

var braceLanguages = map[string]bool{
	"go": true, "javascript": true, "typescript": true, "java": true,
	"c": true, "cpp": true, "csharp": true, "rust": true, "php": true,
	"kotlin": true, "swift": true, "scala": true,
}

var indentLanguages = map[string]bool{
	"python": true, "ruby": true,
}

func family(language string) langFamily {
	lang := strings.ToLower(language)
	switch {
	case lang == "markdown" || lang == "md":
		return familyMarkdown
	case braceLanguages[lang]:
		return familyBrace
	case indentLanguages[lang]:
		return familyIndent
	default:
		return familyUnknown
	}
}

// rawChunk is an intermediate line-span before content/metadata extraction.
type rawChunk struct {
	startLine int // 1-based, inclusive
	endLine   int // 1-based, inclusive
	kind      model.ChunkKind
	symbol    string
}

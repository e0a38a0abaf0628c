// Package analyzer classifies a file's language, structure, and importance
// for the live indexing pipeline, without doing any language-exact parsing.
package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cortexlabs/cortex-core/internal/model"
)

// maxAnalyzeSize bounds how much content is analyzed per file (1 MiB).
const maxAnalyzeSize = 1 << 20

var extToLanguage = map[string]string{
	".go": "go", ".py": "python", ".rb": "ruby", ".rs": "rust",
	".js": "javascript", ".jsx": "javascript", ".ts": "typescript", ".tsx": "typescript",
	".java": "java", ".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp",
	".cs": "csharp", ".php": "php", ".md": "markdown", ".rst": "markdown",
	".yml": "yaml", ".yaml": "yaml", ".json": "json", ".toml": "toml",
}

var (
	testPathPattern   = regexp.MustCompile(`(?i)(_test\.|\.test\.|/tests?/|_spec\.|\.spec\.)`)
	buildPathPattern  = regexp.MustCompile(`(?i)(Makefile|Dockerfile|\.ya?ml$|go\.mod$|package\.json$|\.lock$|\.toml$)`)
	configPathPattern = regexp.MustCompile(`(?i)(config|settings|\.env)`)
	docPathPattern    = regexp.MustCompile(`(?i)(readme|docs?/|\.md$|\.rst$)`)
	keyEntryPattern   = regexp.MustCompile(`(?i)(main\.|index\.|app\.|server\.)`)
)

// Analyze classifies content found at path (a repo-relative path used only
// for keyword heuristics, not read from disk here).
func Analyze(path string, content []byte) model.ContentAnalysis {
	if len(content) > maxAnalyzeSize {
		content = content[:maxAnalyzeSize]
	}
	text := string(content)
	lines := strings.Split(text, "\n")

	language := detectLanguage(path)
	fileType := detectFileType(path)

	hasImports := containsAny(text, "import ", "require(", "#include", "use ")
	hasExports := containsAny(text, "export ", "module.exports", "public ")
	hasTests := testPathPattern.MatchString(path) || containsAny(text, "func Test", "def test_", "describe(", "it(")
	hasDocs := containsDocComment(text)

	commentLines, codeLines := countCommentAndCodeLines(lines, language)
	ratio := 0.0
	if codeLines+commentLines > 0 {
		ratio = float64(commentLines) / float64(codeLines+commentLines)
	}

	uniqueTokens := countUniqueTokens(text)
	complexity := 1 + strings.Count(text, "if ") + strings.Count(text, "for ") + strings.Count(text, "while ")

	semanticValue := classifySemanticValue(fileType, hasTests, hasDocs)
	importance := estimateImportance(path, fileType, language, hasImports, hasExports, semanticValue)

	return model.ContentAnalysis{
		Language:            language,
		Complexity:          complexity,
		HasImports:          hasImports,
		HasExports:          hasExports,
		HasTests:            hasTests,
		HasDocumentation:    hasDocs,
		CodeCommentRatio:    ratio,
		UniqueTokens:        uniqueTokens,
		SemanticValue:       semanticValue,
		FileType:            fileType,
		EstimatedImportance: importance,
	}
}

func detectLanguage(path string) string {
	if lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "unknown"
}

func detectFileType(path string) string {
	switch {
	case testPathPattern.MatchString(path):
		return "test"
	case buildPathPattern.MatchString(path):
		return "build"
	case docPathPattern.MatchString(path):
		return "documentation"
	case configPathPattern.MatchString(path):
		return "config"
	case strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".csv") || strings.HasSuffix(path, ".yaml"):
		return "data"
	default:
		return "source"
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func containsDocComment(text string) bool {
	return strings.Contains(text, "/**") || strings.Contains(text, `"""`) || strings.Contains(text, "///")
}

func countCommentAndCodeLines(lines []string, language string) (comment, code int) {
	prefix := commentPrefix(language)
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if prefix != "" && strings.HasPrefix(t, prefix) {
			comment++
		} else {
			code++
		}
	}
	return
}

func commentPrefix(language string) string {
	switch language {
	case "python", "ruby", "yaml", "toml":
		return "#"
	case "markdown":
		return ""
	default:
		return "//"
	}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func countUniqueTokens(text string) int {
	tokens := tokenPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		seen[tok] = true
	}
	return len(seen)
}

func classifySemanticValue(fileType string, hasTests, hasDocs bool) string {
	switch fileType {
	case "source":
		return "high"
	case "documentation":
		if hasDocs {
			return "medium"
		}
		return "low"
	case "test":
		return "medium"
	case "config":
		return "medium"
	default:
		return "low"
	}
}

// estimateImportance is a weighted sum over semantic value, file type,
// structural signals, and path keywords, clamped to [0,100]. It is the sole
// input to the live pipeline's indexing-priority decision.
func estimateImportance(path, fileType, language string, hasImports, hasExports bool, semanticValue string) int {
	score := 0.0

	switch semanticValue {
	case "high":
		score += 40
	case "medium":
		score += 20
	case "low":
		score += 5
	}

	switch fileType {
	case "source":
		score += 30
	case "config":
		score += 20
	case "test":
		score += 15
	case "documentation":
		score += 10
	case "build":
		score += 5
	case "data":
		score += 5
	}

	if language != "unknown" {
		score += 5
	}
	if hasExports {
		score += 10
	}
	if hasImports {
		score += 5
	}
	if keyEntryPattern.MatchString(path) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}

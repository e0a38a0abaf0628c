package chunker

import (
	"regexp"
	"strings"
)

var (
	goImportPattern     = regexp.MustCompile(`^\s*(?:import\s+)?"([^"]+)"`)
	jsImportPattern      = regexp.MustCompile(`(?:import\s+.*?from\s+|require\()\s*['"]([^'"]+)['"]`)
	pyImportPattern      = regexp.MustCompile(`^\s*(?:import|from)\s+([A-Za-z0-9_.]+)`)
	jsExportPattern      = regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:const|function|class|let|var)?\s*([A-Za-z_][A-Za-z0-9_]*)`)
	goExportedIdentPattern = regexp.MustCompile(`^\s*(?:func|type|var|const)\s+([A-Z][A-Za-z0-9_]*)`)
)

// extractImports returns the symbol/module names a chunk's content imports,
// dispatched loosely by language family rather than a full parser.
func extractImports(text, language string) []string {
	var matches [][]string
	switch strings.ToLower(language) {
	case "go":
		matches = goImportPattern.FindAllStringSubmatch(text, -1)
	case "python":
		matches = pyImportPattern.FindAllStringSubmatch(text, -1)
	default:
		matches = jsImportPattern.FindAllStringSubmatch(text, -1)
	}
	return uniqueGroup1(matches)
}

// extractExports returns exported identifier names, where the language has
// an explicit export marker (JS/TS `export`, Go capitalized top-level
// identifiers). Languages without such a marker return nil.
func extractExports(text, language string) []string {
	switch strings.ToLower(language) {
	case "go":
		return uniqueGroup1(goExportedIdentPattern.FindAllStringSubmatch(text, -1))
	case "javascript", "typescript":
		return uniqueGroup1(jsExportPattern.FindAllStringSubmatch(text, -1))
	default:
		return nil
	}
}

func uniqueGroup1(matches [][]string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		v := m[1]
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

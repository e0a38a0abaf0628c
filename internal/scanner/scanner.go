// Package scanner enumerates repository files for the indexing pipeline
// (full or incremental mode), reads their content, and exposes commit and
// co-change metadata over an injectable git.Operations.
package scanner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"

	"github.com/cortexlabs/cortex-core/internal/git"
)

// Mode selects which files a scan enumerates.
type Mode string

const (
	// ModeFull lists all tracked and staged text files.
	ModeFull Mode = "full"
	// ModeIncremental lists all tracked files, used to diff against the
	// persisted index.
	ModeIncremental Mode = "incremental"
)

// maxFileSize is the skip threshold for individual files (1 MiB).
const maxFileSize = 1 << 20

// sniffWindow is how many leading bytes are checked for a null byte when
// classifying a file as binary.
const sniffWindow = 512

// binaryExtensions is an allow-list inversion: these extensions are always
// treated as binary regardless of content sniffing.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".exe": true,
	".dll": true, ".so": true, ".dylib": true, ".bin": true, ".woff": true,
	".woff2": true, ".ttf": true, ".eot": true, ".mp4": true, ".mp3": true,
	".wasm": true, ".class": true, ".jar": true,
}

// FileChange describes the last commit that touched a file (spec §4.1).
type FileChange struct {
	Path       string
	LastCommit string
	Author     string
	Message    string
	Date       time.Time
}

// Scanner lists candidate files, reads their content, and computes commit
// and co-change metadata for a single repository root.
type Scanner struct {
	root           string
	git            git.Operations
	codePatterns   []glob.Glob
	docsPatterns   []glob.Glob
	ignorePatterns []glob.Glob
}

// New builds a Scanner rooted at root, matching code/docs files by the given
// glob patterns and excluding anything matching ignorePatterns.
func New(root string, codePatterns, docsPatterns, ignorePatterns []string, gitOps git.Operations) (*Scanner, error) {
	if gitOps == nil {
		gitOps = git.NewOperations()
	}
	s := &Scanner{root: root, git: gitOps}

	compile := func(patterns []string) ([]glob.Glob, error) {
		compiled := make([]glob.Glob, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, fmt.Errorf("scanner: compile pattern %q: %w", p, err)
			}
			compiled = append(compiled, g)
		}
		return compiled, nil
	}

	var err error
	if s.codePatterns, err = compile(codePatterns); err != nil {
		return nil, err
	}
	if s.docsPatterns, err = compile(docsPatterns); err != nil {
		return nil, err
	}
	if s.ignorePatterns, err = compile(ignorePatterns); err != nil {
		return nil, err
	}
	return s, nil
}

// ScanResult is the output of a directory walk.
type ScanResult struct {
	CodeFiles []string // repo-relative paths
	DocFiles  []string // repo-relative paths
}

// Scan classifies files by pattern, preferring the repository's tracked and
// staged set (git ls-files --cached) so untracked build output and ignored
// directories never need a pattern to exclude them; it falls back to a
// plain directory walk when s.root isn't inside a git repository. Both
// ModeFull and ModeIncremental list the same set today; incremental mode
// exists as a distinct entry point because delta computation against the
// persisted index (C8) only needs the tracked set, not untracked
// additions, and callers select on Mode to make that intent explicit.
func (s *Scanner) Scan(mode Mode) (ScanResult, error) {
	if files, err := s.git.ListFiles(s.root); err == nil {
		return s.scanFromFileList(files), nil
	}
	return s.scanByWalk()
}

func (s *Scanner) scanFromFileList(files []string) ScanResult {
	var result ScanResult
	for _, relPath := range files {
		relPath = filepath.ToSlash(relPath)
		info, err := os.Stat(filepath.Join(s.root, relPath))
		if err != nil || info.IsDir() {
			continue
		}
		s.classify(relPath, info.Size(), &result)
	}
	sort.Strings(result.CodeFiles)
	sort.Strings(result.DocFiles)
	return result
}

func (s *Scanner) scanByWalk() (ScanResult, error) {
	var result ScanResult

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		s.classify(relPath, info.Size(), &result)
		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("scanner: walk %s: %w", s.root, err)
	}

	sort.Strings(result.CodeFiles)
	sort.Strings(result.DocFiles)
	return result, nil
}

// classify applies the ignore/size/binary/pattern rules shared by both scan
// strategies, appending relPath to result when it qualifies.
func (s *Scanner) classify(relPath string, size int64, result *ScanResult) {
	if s.shouldIgnore(relPath) {
		return
	}
	if size > maxFileSize {
		return
	}
	if isBinaryExt(relPath) {
		return
	}

	switch {
	case matchesAny(relPath, s.codePatterns):
		result.CodeFiles = append(result.CodeFiles, relPath)
	case matchesAny(relPath, s.docsPatterns):
		result.DocFiles = append(result.DocFiles, relPath)
	}
}

// Read returns the content of a repo-relative path, sniffing for binary
// content in the first sniffWindow bytes before returning it.
func (s *Scanner) Read(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, relPath))
	if err != nil {
		return nil, fmt.Errorf("scanner: read %s: %w", relPath, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("scanner: %s exceeds max file size", relPath)
	}
	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	if bytes.IndexByte(window, 0) >= 0 {
		return nil, fmt.Errorf("scanner: %s looks binary", relPath)
	}
	return data, nil
}

// GetFileChanges returns last-commit metadata for each path, best-effort:
// paths git can't resolve are silently omitted rather than failing the
// whole batch.
func (s *Scanner) GetFileChanges(paths []string) []FileChange {
	changes := make([]FileChange, 0, len(paths))
	for _, p := range paths {
		fc, ok := s.git.LastCommitFor(s.root, p)
		if !ok {
			continue
		}
		changes = append(changes, FileChange{
			Path:       p,
			LastCommit: fc.Hash,
			Author:     fc.Author,
			Message:    fc.Message,
			Date:       fc.Date,
		})
	}
	return changes
}

// GetCoChangeFiles returns paths that were historically committed alongside
// path, most-frequent first.
func (s *Scanner) GetCoChangeFiles(path string) []string {
	return s.git.CoChangedFiles(s.root, path)
}

// ShouldIgnore reports whether relPath is excluded from scanning (and thus
// should not be watched either).
func (s *Scanner) ShouldIgnore(relPath string) bool {
	return s.shouldIgnore(relPath)
}

// MatchesTracked reports whether relPath would be classified as a code or
// doc file by Scan, for callers (the live watcher) that need to filter
// individual filesystem events the same way.
func (s *Scanner) MatchesTracked(relPath string) bool {
	if s.shouldIgnore(relPath) {
		return false
	}
	return matchesAny(relPath, s.codePatterns) || matchesAny(relPath, s.docsPatterns)
}

func (s *Scanner) shouldIgnore(relPath string) bool {
	if relPath == ".cortex" || hasPrefixSegment(relPath, ".cortex/") {
		return true
	}
	if hasPrefixSegment(relPath, ".git/") || relPath == ".git" {
		return true
	}
	if matchesAny(relPath, s.ignorePatterns) {
		return true
	}
	return matchesAny(relPath+"/**", s.ignorePatterns)
}

func hasPrefixSegment(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

func matchesAny(path string, patterns []glob.Glob) bool {
	for _, p := range patterns {
		// "**" in gobwas/glob needs the literal "/" after it, so "**/*.go"
		// alone never matches a root-level "main.go"; matching "/"+path
		// lets a leading "**/" cover the repository root too.
		if p.Match(path) || p.Match("/"+path) {
			return true
		}
	}
	return false
}

func isBinaryExt(relPath string) bool {
	ext := filepath.Ext(relPath)
	return binaryExtensions[ext]
}

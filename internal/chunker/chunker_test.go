package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/model"
)

func TestChunk_GoFunctionsAndImports(t *testing.T) {
	content := `package main

import "fmt"

func Hello(name string) string {
	if name == "" {
		return "hi"
	}
	return "hello " + name
}

func World() {
	fmt.Println("world")
}
`
	c := New(DefaultOptions())
	chunks := c.Chunk("main.go", "go", content, nil, nil)

	require.NotEmpty(t, chunks)

	var kinds []model.ChunkKind
	var symbols []string
	for _, ch := range chunks {
		kinds = append(kinds, ch.Kind)
		if ch.SymbolName != "" {
			symbols = append(symbols, ch.SymbolName)
		}
	}
	assert.Contains(t, symbols, "Hello")
	assert.Contains(t, symbols, "World")
}

func TestChunk_PythonIndentBlocks(t *testing.T) {
	content := `import os

def greet(name):
    if name:
        return "hi " + name
    return "hi"

class Greeter:
    def run(self):
        return greet("x")
`
	c := New(DefaultOptions())
	chunks := c.Chunk("greet.py", "python", content, nil, nil)

	var symbols []string
	for _, ch := range chunks {
		if ch.SymbolName != "" {
			symbols = append(symbols, ch.SymbolName)
		}
	}
	assert.Contains(t, symbols, "greet")
	assert.Contains(t, symbols, "Greeter")
}

func TestChunk_MarkdownHeaderSplitting(t *testing.T) {
	content := "# Title\n\nintro\n\n## Section One\n\nbody text\n\n## Section Two\n\nmore text\n"
	c := New(DefaultOptions())
	chunks := c.Chunk("README.md", "markdown", content, nil, nil)

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, model.ChunkDocumentation, ch.Kind)
	}
}

func TestChunk_UnknownLanguageFallsBackToFixedWindow(t *testing.T) {
	var lines []string
	for i := 0; i < 120; i++ {
		lines = append(lines, "line")
	}
	content := strings.Join(lines, "\n")

	c := New(DefaultOptions())
	chunks := c.Chunk("data.unknownlang", "cobol", content, nil, nil)

	require.Len(t, chunks, 3) // 120 lines / 50-line window = 3 chunks
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 50, chunks[0].EndLine)
}

func TestChunk_CoversEveryNonBlankLineAtMostOnce(t *testing.T) {
	content := `package main

func A() {
	x := 1
	_ = x
}

func B() {
	y := 2
	_ = y
}
`
	c := New(DefaultOptions())
	chunks := c.Chunk("main.go", "go", content, nil, nil)

	seen := make(map[int]bool)
	for _, ch := range chunks {
		for line := ch.StartLine; line <= ch.EndLine; line++ {
			assert.False(t, seen[line], "line %d covered by more than one chunk", line)
			seen[line] = true
		}
	}
}

func TestChunk_DeterministicAcrossRuns(t *testing.T) {
	content := "package main\n\nfunc A() {\n\treturn\n}\n"
	c := New(DefaultOptions())

	first := c.Chunk("main.go", "go", content, nil, nil)
	second := c.Chunk("main.go", "go", content, nil, nil)

	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestChunk_EmptyContentYieldsNoChunks(t *testing.T) {
	c := New(DefaultOptions())
	chunks := c.Chunk("empty.go", "go", "   \n  \n", nil, nil)
	assert.Empty(t, chunks)
}

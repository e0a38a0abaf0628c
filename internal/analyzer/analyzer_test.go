package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_SourceFile(t *testing.T) {
	content := []byte(`package main

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	if name == "" {
		for i := 0; i < 3; i++ {
			fmt.Println("hi")
		}
	}
}
`)
	a := Analyze("main.go", content)

	assert.Equal(t, "go", a.Language)
	assert.Equal(t, "source", a.FileType)
	assert.True(t, a.HasImports)
	assert.Greater(t, a.EstimatedImportance, 0)
	assert.LessOrEqual(t, a.EstimatedImportance, 100)
}

func TestAnalyze_TestFile(t *testing.T) {
	a := Analyze("internal/thing/thing_test.go", []byte("package thing\n\nfunc TestSomething(t *testing.T) {}\n"))
	assert.Equal(t, "test", a.FileType)
	assert.True(t, a.HasTests)
}

func TestAnalyze_DocumentationFile(t *testing.T) {
	a := Analyze("README.md", []byte("# Title\n\nSome docs.\n"))
	assert.Equal(t, "documentation", a.FileType)
	assert.Equal(t, "markdown", a.Language)
}

func TestAnalyze_ImportanceClampedToRange(t *testing.T) {
	a := Analyze("cmd/main.go", []byte(`package main
import "fmt"
export func Main() { fmt.Println("x") }
`))
	assert.GreaterOrEqual(t, a.EstimatedImportance, 0)
	assert.LessOrEqual(t, a.EstimatedImportance, 100)
}

func TestAnalyze_TruncatesOversizedContent(t *testing.T) {
	big := make([]byte, maxAnalyzeSize+1000)
	for i := range big {
		big[i] = 'a'
	}
	a := Analyze("big.go", big)
	assert.GreaterOrEqual(t, a.UniqueTokens, 1)
}

package repoops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatusPaths_ExtractsPathsAndTrimsStatusCode(t *testing.T) {
	status := " M internal/foo.go\n?? internal/new_file.go\n"

	paths := parseStatusPaths(status)

	assert.Equal(t, []string{"internal/foo.go", "internal/new_file.go"}, paths)
}

func TestParseStatusPaths_RenameKeepsNewPath(t *testing.T) {
	status := "R  old/path.go -> new/path.go\n"

	paths := parseStatusPaths(status)

	assert.Equal(t, []string{"new/path.go"}, paths)
}

func TestParseStatusPaths_IgnoresBlankAndShortLines(t *testing.T) {
	status := "\n  \nM  a.go\n"

	paths := parseStatusPaths(status)

	assert.Equal(t, []string{"a.go"}, paths)
}

func TestParseStatusPaths_EmptyStatusReturnsNoPaths(t *testing.T) {
	assert.Empty(t, parseStatusPaths(""))
}

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRepoTargetFullURL(t *testing.T) {
	url, dest := extractRepoTarget("please clone https://github.com/karpathy/nanoGPT.git now")
	assert.Equal(t, "https://github.com/karpathy/nanoGPT.git", url)
	assert.Equal(t, "nanoGPT", dest)
}

func TestExtractRepoTargetTrailingPunctuation(t *testing.T) {
	url, _ := extractRepoTarget("clone https://github.com/a/b.")
	assert.Equal(t, "https://github.com/a/b", url)
}

func TestExtractRepoTargetBareHostPath(t *testing.T) {
	url, dest := extractRepoTarget("grab github.com/golang/go for me")
	assert.Equal(t, "https://github.com/golang/go", url)
	assert.Equal(t, "go", dest)
}

func TestExtractRepoTargetShorthand(t *testing.T) {
	url, dest := extractRepoTarget("download karpathy/nanoGPT")
	assert.Equal(t, "https://github.com/karpathy/nanoGPT", url)
	assert.Equal(t, "nanoGPT", dest)
}

func TestExtractRepoTargetStopWords(t *testing.T) {
	url, _ := extractRepoTarget("download the/latest build")
	assert.Equal(t, "", url)
}

func TestExtractRepoTargetFilePathNotARepo(t *testing.T) {
	// A path with a file extension is a file reference, not owner/repo.
	url, _ := extractRepoTarget("edit src/main.py please")
	assert.Equal(t, "", url)
}

func TestExtractRepoTargetNothing(t *testing.T) {
	url, dest := extractRepoTarget("explain the build system")
	assert.Equal(t, "", url)
	assert.Equal(t, "", dest)
}

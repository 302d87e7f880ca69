package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySource = `import os

def first():
    a = 1

    b = 2
    return a + b

def second():
    return None

class Thing:
    def method(self):
        pass
`

func TestLocateDefinitionFunction(t *testing.T) {
	section, ok := locateDefinition(pySource, "first")
	require.True(t, ok)
	assert.Contains(t, section, "def first():")
	assert.Contains(t, section, "return a + b")
	// Blank lines inside the body do not end the section.
	assert.Contains(t, section, "b = 2")
	assert.NotContains(t, section, "def second")
}

func TestLocateDefinitionClass(t *testing.T) {
	section, ok := locateDefinition(pySource, "Thing")
	require.True(t, ok)
	assert.Contains(t, section, "class Thing:")
	assert.Contains(t, section, "def method(self):")
}

func TestLocateDefinitionNestedMethodKeepsIndentScope(t *testing.T) {
	section, ok := locateDefinition(pySource, "method")
	require.True(t, ok)
	assert.Contains(t, section, "def method(self):")
	assert.Contains(t, section, "pass")
}

func TestLocateDefinitionGoReceiver(t *testing.T) {
	src := "package p\n\nfunc (s *Server) Start() error {\n\treturn nil\n}\n\nfunc Stop() {}\n"
	section, ok := locateDefinition(src, "Start")
	require.True(t, ok)
	assert.Contains(t, section, "func (s *Server) Start() error {")
	assert.NotContains(t, section, "func Stop")
}

func TestLocateDefinitionNotFound(t *testing.T) {
	_, ok := locateDefinition(pySource, "missing")
	assert.False(t, ok)
}

func TestLocateDefinitionRejectsPrefixMatches(t *testing.T) {
	src := "def firstly():\n    pass\n\ndef first():\n    return 1\n"
	section, ok := locateDefinition(src, "first")
	require.True(t, ok)
	assert.Contains(t, section, "def first():")
	assert.NotContains(t, section, "firstly")
}

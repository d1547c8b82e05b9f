package exclude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_BareNameExpandsToAnyDepth(t *testing.T) {
	m, err := Compile([]string{"node_modules"})
	require.NoError(t, err)

	assert.True(t, m.Match("node_modules"))
	assert.True(t, m.Match("project/node_modules"))
	assert.True(t, m.Match("project/node_modules/lodash/index.js"))
	assert.False(t, m.Match("project/src/node_modules_backup"))
}

func TestCompile_GlobPatternPassedThroughVerbatim(t *testing.T) {
	m, err := Compile([]string{"*.log"})
	require.NoError(t, err)

	assert.True(t, m.Match("debug.log"))
	assert.False(t, m.Match("debug.log.gz"))
}

func TestCompile_DotContainingPatternPassedThroughVerbatim(t *testing.T) {
	m, err := Compile([]string{"config.yaml"})
	require.NoError(t, err)

	assert.True(t, m.Match("config.yaml"))
	assert.True(t, m.Match("deep/config.yaml"), "the verbatim glob does not match here, but the exact component-name rule does")
}

func TestMatch_ExactComponentNameAlwaysExcludes(t *testing.T) {
	m, err := Compile([]string{"target"})
	require.NoError(t, err)

	assert.True(t, m.Match("project/target/debug/out"))
	assert.True(t, m.Match("target"))
}

func TestEmpty(t *testing.T) {
	m, err := Compile(nil)
	require.NoError(t, err)
	assert.True(t, m.Empty())

	m2, err := Compile([]string{"node_modules"})
	require.NoError(t, err)
	assert.False(t, m2.Empty())
}

func TestMatch_NilMatcherNeverExcludes(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything"))
	assert.True(t, m.Empty())
}

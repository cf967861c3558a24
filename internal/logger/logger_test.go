package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Initialize("debug", true))
	assert.True(t, JSONOutput)
	assert.NotNil(t, ComponentLogger("store"))

	require.NoError(t, Initialize("warn", false))
	assert.False(t, JSONOutput)

	assert.Error(t, Initialize("loud", false))
}

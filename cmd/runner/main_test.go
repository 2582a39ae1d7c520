package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", run.Name())
	flag := run.Flags().Lookup("consume")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)

	once, _, err := root.Find([]string{"once"})
	require.NoError(t, err)
	assert.Equal(t, "once", once.Name())
}

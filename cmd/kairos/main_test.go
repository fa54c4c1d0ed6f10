package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "backtest")

	bt, _, err := root.Find([]string{"backtest"})
	require.NoError(t, err)
	assert.Equal(t, "backtest.yaml", bt.Flags().Lookup("job").DefValue)
}

func TestBacktestMissingJob(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"backtest", "--job", t.TempDir() + "/nope.yaml"})
	assert.Error(t, root.Execute())
}

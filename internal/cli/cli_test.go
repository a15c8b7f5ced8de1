package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/production/stage"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"start"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"seed"},
		{"worker", "run"},
		{"sync", "workers"},
		{"stages"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestPrintStages(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStages(&out, stage.MustSequence("pending", "design", "completed")))
	assert.Equal(t, "1. pending (initial)\n2. design\n3. completed (final)\n", out.String())
}

func TestStartFlags(t *testing.T) {
	cmd, _, err := NewRootCommand().Find([]string{"start"})
	require.NoError(t, err)

	flag := cmd.Flags().Lookup("with-worker")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	assert.Contains(t, cmd.Aliases, "run")
}

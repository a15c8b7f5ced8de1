package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/config"
)

func TestSequenceNext(t *testing.T) {
	seq, err := NewSequence(config.DefaultStages)
	require.NoError(t, err)

	next, ok := seq.Next(Pending)
	require.True(t, ok)
	assert.Equal(t, Design, next)

	next, ok = seq.Next(QualityCheck)
	require.True(t, ok)
	assert.Equal(t, ReadyForDelivery, next)

	_, ok = seq.Next(Completed)
	assert.False(t, ok)

	_, ok = seq.Next(Name("welding"))
	assert.False(t, ok)
}

func TestSequenceQueries(t *testing.T) {
	seq := MustSequence("pending", "design", "assembly", "completed")

	assert.Equal(t, Pending, seq.First())
	assert.Equal(t, Completed, seq.Last())
	assert.True(t, seq.IsFinal(Completed))
	assert.False(t, seq.IsFinal(Design))
	assert.Equal(t, 2, seq.Position("assembly"))
	assert.Equal(t, -1, seq.Position("sewing"))
	assert.Equal(t, []Name{Design, "assembly"}, seq.Work())
	assert.Equal(t, 4, seq.Len())
}

func TestNewSequenceRejectsInvalidInput(t *testing.T) {
	_, err := NewSequence(nil)
	assert.Error(t, err)

	_, err = NewSequence([]string{"design", "design"})
	assert.Error(t, err)

	_, err = NewSequence([]string{"design", ""})
	assert.Error(t, err)
}

func TestNamesIsACopy(t *testing.T) {
	seq := MustSequence("pending", "completed")
	names := seq.Names()
	names[0] = "tampered"
	assert.Equal(t, Pending, seq.First())
}

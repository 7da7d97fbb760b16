package textedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_ReplaceOutOfOrder(t *testing.T) {
	b := New("import a; import b; rest")
	require.NoError(t, b.Replace(10, 19, "import c;"))
	require.NoError(t, b.Delete(0, 9))

	assert.True(t, b.Changed())
	assert.Equal(t, " import c; rest", b.String())
	assert.Equal(t, "import a; import b; rest", b.Original())
}

func TestBuffer_Overlap(t *testing.T) {
	b := New("0123456789")
	require.NoError(t, b.Replace(2, 5, "x"))

	err := b.Replace(4, 6, "y")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlap)

	// Adjacent edits are fine.
	require.NoError(t, b.Replace(5, 6, "y"))
	assert.Equal(t, "01xy6789", b.String())
}

func TestBuffer_OutOfRange(t *testing.T) {
	b := New("abc")
	assert.Error(t, b.Replace(-1, 1, ""))
	assert.Error(t, b.Replace(2, 4, ""))
	assert.Error(t, b.Replace(2, 1, ""))
}

func TestBuffer_NoEdits(t *testing.T) {
	b := New("unchanged")
	assert.False(t, b.Changed())
	assert.Equal(t, "unchanged", b.String())
}

func TestBuffer_Insert(t *testing.T) {
	b := New("ac")
	require.NoError(t, b.Replace(1, 1, "b"))
	assert.ErrorIs(t, b.Replace(1, 1, "z"), ErrOverlap)
	assert.Equal(t, "abc", b.String())
}

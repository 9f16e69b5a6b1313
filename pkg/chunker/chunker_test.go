package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	chunks, err := Split("doc-1", "A short document.", 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short document.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len("A short document."), chunks[0].End)
}

func TestSplitEmptyText(t *testing.T) {
	chunks, err := Split("doc-1", "", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitInvalidParams(t *testing.T) {
	_, err := Split("doc-1", "text", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = Split("doc-1", "text", 100, -1)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = Split("doc-1", "text", 100, 100)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = Split("doc-1", "text", 100, 150)
	assert.ErrorIs(t, err, ErrInvalidOverlap)
}

func TestSplitReconstruction(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	const size, overlap = 500, 100

	chunks, err := Split("doc-1", text, size, overlap)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, text, Reassemble(chunks, overlap))
}

func TestSplitReconstructionNoBoundaries(t *testing.T) {
	// No sentence boundaries anywhere, so every cut lands on the target
	// offset.
	text := strings.Repeat("abcdefghij", 300)
	const size, overlap = 250, 50

	chunks, err := Split("doc-1", text, size, overlap)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, text, Reassemble(chunks, overlap))
	for _, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, size, len(c.Text))
	}
}

func TestSplitOverlapPrefix(t *testing.T) {
	text := strings.Repeat("Sentence one here. Sentence two follows! Is this three? ", 100)
	const size, overlap = 400, 80

	chunks, err := Split("doc-1", text, size, overlap)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Equal(t, prev.End-overlap, cur.Start, "chunk %d start", i)
		assert.Equal(t, text[cur.Start:cur.End], cur.Text)
		// the overlap region is shared verbatim with the previous chunk
		assert.Equal(t, prev.Text[len(prev.Text)-overlap:], cur.Text[:overlap])
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// A boundary sits inside the tolerance window, so the cut snaps to it.
	head := strings.Repeat("a", 180) + ". "
	text := head + strings.Repeat("b", 400)

	chunks, err := Split("doc-1", text, 200, 40)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// first chunk ends just after the period inside the window
	assert.Equal(t, len(strings.Repeat("a", 180))+1, chunks[0].End)
	assert.Equal(t, text, Reassemble(chunks, 40))
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. Delta epsilon zeta! ", 150)

	first, err := Split("doc-1", text, 300, 60)
	require.NoError(t, err)
	second, err := Split("doc-1", text, 300, 60)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitForwardProgress(t *testing.T) {
	// Boundaries packed so densely that a naive backward search could pick
	// one inside the overlap region and stall. Every chunk must still
	// advance the start offset.
	text := strings.Repeat(".", 2000)

	chunks, err := Split("doc-1", text, 100, 99)
	require.NoError(t, err)

	prev := -1
	for _, c := range chunks {
		require.Greater(t, c.Start, prev)
		prev = c.Start
	}
	assert.Equal(t, text, Reassemble(chunks, 99))
}

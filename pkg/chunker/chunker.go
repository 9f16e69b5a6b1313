// Package chunker splits document text into overlapping segments for
// extraction. Chunking is deterministic: the same text and parameters
// always produce identical chunks, so a restarted pipeline re-derives the
// same spans.
package chunker

import (
	"errors"
	"fmt"

	"github.com/soundprediction/akgraph/pkg/types"
)

// Default chunking parameters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var (
	// ErrInvalidSize is returned when the chunk size is not positive.
	ErrInvalidSize = errors.New("chunk size must be positive")
	// ErrInvalidOverlap is returned when the overlap is negative or does
	// not leave room for forward progress.
	ErrInvalidOverlap = errors.New("overlap must be non-negative and smaller than chunk size")
)

// sentence-ending bytes considered split points. Newlines are included so
// markdown headings and paragraph breaks are preferred over mid-sentence
// cuts.
func isBoundary(b byte) bool {
	switch b {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// Split divides text into overlapping chunks of roughly size characters.
// Each chunk after the first begins overlap characters before the previous
// chunk's end. Splits prefer the sentence boundary nearest the target
// offset; when no boundary exists within the tolerance window (equal to
// overlap), the chunk is cut at the target offset.
//
// Concatenating the first chunk with every later chunk's text beyond its
// overlap prefix reconstructs the input exactly.
func Split(documentID, text string, size, overlap int) ([]types.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	if text == "" {
		return nil, nil
	}

	if len(text) <= size {
		return []types.Chunk{{
			DocumentID: documentID,
			Index:      0,
			Text:       text,
			Start:      0,
			End:        len(text),
		}}, nil
	}

	var chunks []types.Chunk
	start := 0
	for {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = adjustToBoundary(text, start, end, overlap)
		}

		chunks = append(chunks, types.Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       text[start:end],
			Start:      start,
			End:        end,
		})

		if end == len(text) {
			return chunks, nil
		}
		start = end - overlap
	}
}

// adjustToBoundary looks backwards from the target offset for the nearest
// sentence boundary inside the tolerance window. The boundary must leave
// the chunk longer than the overlap, otherwise the next chunk's start
// would not advance.
func adjustToBoundary(text string, start, target, window int) int {
	low := target - window
	if min := start + window + 1; low < min {
		low = min
	}
	for i := target - 1; i >= low; i-- {
		if isBoundary(text[i]) {
			return i + 1
		}
	}
	return target
}

// Reassemble reconstructs the original text from chunks emitted by Split
// with the given overlap. It is primarily a verification helper: the
// result must equal the input text exactly.
func Reassemble(chunks []types.Chunk, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := chunks[0].Text
	for _, c := range chunks[1:] {
		if len(c.Text) > overlap {
			out += c.Text[overlap:]
		}
	}
	return out
}

// Package chunker splits raw document text into overlapping, size-bounded
// passages for indexing.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidConfig indicates invalid splitter parameters (overlap >= max size).
var ErrInvalidConfig = errors.New("chunker: overlap must be smaller than max chunk size")

// Default chunking parameters.
const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// separators are tried in order, largest natural boundary first.
// The empty string is the last resort: split between runes.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter divides text at the largest natural boundary (paragraph, line,
// word, rune) that keeps each chunk at or under MaxSize characters.
// Consecutive chunks overlap by approximately Overlap characters.
// Splitting is deterministic: the same input and parameters always produce
// the same sequence.
type Splitter struct {
	maxSize int
	overlap int
}

// NewSplitter creates a Splitter. It fails fast with ErrInvalidConfig when
// overlap is negative, maxSize is non-positive, or overlap >= maxSize.
func NewSplitter(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 || overlap < 0 || overlap >= maxSize {
		return nil, ErrInvalidConfig
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the configured maximum chunk length in characters.
func (s *Splitter) MaxSize() int { return s.maxSize }

// Overlap returns the configured overlap length in characters.
func (s *Splitter) Overlap() int { return s.overlap }

// Split divides text into chunks. Empty or whitespace-only input yields no
// chunks. Text that already fits in one chunk is returned unchanged.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= s.maxSize {
		return []string{text}
	}
	return s.split(text, separators)
}

// split recursively divides text using the first separator present in it,
// merging small pieces back together and recursing into oversized ones with
// the remaining, finer separators.
func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, sep) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if len(piece) <= s.maxSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge greedily joins pieces into chunks of at most maxSize characters,
// carrying roughly overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var current []string
	total := 0

	joinLen := func(n int) int {
		if n > 0 {
			return len(sep)
		}
		return 0
	}

	for _, piece := range pieces {
		if total+len(piece)+joinLen(len(current)) > s.maxSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				chunks = append(chunks, doc)
			}
			// Drop leading pieces until what remains fits in the overlap
			// window and leaves room for the incoming piece.
			for total > s.overlap || (total+len(piece)+joinLen(len(current)) > s.maxSize && total > 0) {
				total -= len(current[0]) + joinLen(len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece) + joinLen(len(current)-1)
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

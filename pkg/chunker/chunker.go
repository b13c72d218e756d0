package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultMaxChunkSize = 1000
	DefaultOverlap      = 100
)

// sentenceBoundary marks sentence-ending punctuation followed by whitespace.
// \x1e (record separator) cannot appear in normalized text, so it is safe as a
// split marker.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

var whitespace = regexp.MustCompile(`\s+`)

// Chunker splits text into overlapping, sentence-aligned chunks bounded by a
// maximum size. Sentences are never split mid-way: a single sentence longer
// than the maximum passes through as its own oversized chunk.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

func NewChunker(maxChunkSize, overlap int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxChunkSize {
		return nil, fmt.Errorf("chunker: overlap (%d) must be smaller than max chunk size (%d)", overlap, maxChunkSize)
	}
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlap:      overlap,
	}, nil
}

// Chunk splits text into chunks. Sentences are packed greedily into the
// current chunk until adding the next one would exceed the size limit; the
// next chunk is then seeded with a trailing window of previous sentences whose
// cumulative length stays within the overlap budget.
func (c *Chunker) Chunk(text string) []string {
	text = NormalizeText(text)
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentSize := 0

	for _, sentence := range sentences {
		sentenceSize := len(sentence)

		if currentSize+sentenceSize > c.maxChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			// Seed the next chunk with trailing sentences of the previous
			// one, walked backward until the overlap budget is spent.
			overlapSize := 0
			var overlapWindow []string
			for i := len(current) - 1; i >= 0; i-- {
				prev := current[i]
				if overlapSize+len(prev) > c.overlap {
					break
				}
				overlapWindow = append([]string{prev}, overlapWindow...)
				overlapSize += len(prev)
			}

			current = overlapWindow
			currentSize = overlapSize
		}

		current = append(current, sentence)
		currentSize += sentenceSize
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// NormalizeText collapses runs of whitespace into single spaces and trims the
// ends. Chunk boundaries are computed on normalized text only.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x1e")
	parts := strings.Split(marked, "\x1e")

	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

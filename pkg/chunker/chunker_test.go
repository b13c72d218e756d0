package chunker

import (
	"strings"
	"testing"
)

func TestNewChunkerRejectsOverlap(t *testing.T) {
	if _, err := NewChunker(100, 100); err == nil {
		t.Fatal("expected error when overlap equals max chunk size")
	}
	if _, err := NewChunker(100, 150); err == nil {
		t.Fatal("expected error when overlap exceeds max chunk size")
	}
	if _, err := NewChunker(100, 20); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestChunkBoundaryAndOverlap(t *testing.T) {
	c, err := NewChunker(4, 2)
	if err != nil {
		t.Fatal(err)
	}

	got := c.Chunk("A. B. C.")
	want := []string{"A. B.", "B. C."}

	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c, _ := NewChunker(100, 10)

	for _, input := range []string{"", "   ", "\n\t \n"} {
		if got := c.Chunk(input); len(got) != 0 {
			t.Errorf("Chunk(%q) = %v, want empty", input, got)
		}
	}
}

func TestChunkSingleSentenceFits(t *testing.T) {
	c, _ := NewChunker(100, 10)

	got := c.Chunk("One short sentence.")
	if len(got) != 1 || got[0] != "One short sentence." {
		t.Fatalf("chunks = %v", got)
	}
}

func TestChunkOversizedSentencePassesThrough(t *testing.T) {
	c, _ := NewChunker(20, 5)
	long := "This single sentence is far longer than the configured chunk size limit."

	got := c.Chunk(long + " Tiny one.")
	if len(got) == 0 {
		t.Fatal("no chunks produced")
	}
	if got[0] != long {
		t.Errorf("oversized sentence was not emitted whole: %q", got[0])
	}
}

func TestChunkSizeBound(t *testing.T) {
	c, _ := NewChunker(60, 15)
	text := "The cat sat. The dog ran fast. Birds fly south in winter. Fish swim deep. " +
		"Rain fell all day. The sun rose early. Snow covered the hills."

	for i, chunk := range c.Chunk(text) {
		if len(chunk) > 60 {
			// Only a single oversized sentence may exceed the bound.
			if strings.ContainsAny(chunk[:len(chunk)-1], ".!?") {
				t.Errorf("chunk[%d] exceeds max size with multiple sentences: %q", i, chunk)
			}
		}
	}
}

func TestChunkReconstructsTextWithoutOverlap(t *testing.T) {
	c, _ := NewChunker(40, 0)
	text := "First point here. Second point follows. Third one. Fourth idea lands. Fifth closes it."

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	if joined := strings.Join(chunks, " "); joined != NormalizeText(text) {
		t.Errorf("reconstruction mismatch:\n got %q\nwant %q", joined, NormalizeText(text))
	}
}

func TestChunkNeverSplitsSentences(t *testing.T) {
	c, _ := NewChunker(50, 12)
	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu. Nu xi omicron pi."

	sentences := splitSentences(NormalizeText(text))
	for _, chunk := range c.Chunk(text) {
		for _, s := range splitSentences(chunk) {
			found := false
			for _, orig := range sentences {
				if s == orig {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("chunk contains fragment not matching any source sentence: %q", s)
			}
		}
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"line\none\n\nline two", "line one line two"},
		{"tabs\tand\tspaces", "tabs and spaces"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("What now? Go home! Then rest.")
	want := []string{"What now?", "Go home!", "Then rest."}

	if len(got) != len(want) {
		t.Fatalf("sentences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentencesNoTerminator(t *testing.T) {
	got := splitSentences("no punctuation at all")
	if len(got) != 1 || got[0] != "no punctuation at all" {
		t.Fatalf("sentences = %v", got)
	}
}

package chunker

import (
	"strings"
	"testing"
)

func TestChunk_EmptyInput(t *testing.T) {
	if result := Chunk("   ", DefaultOptions()); result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestChunk_ShortContent(t *testing.T) {
	text := "I see Bob at Library:Hall. He waves."
	result := Chunk("  "+text+"\n", DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
	if result[0].Text != text {
		t.Errorf("expected %q, got %q", text, result[0].Text)
	}
	if result[0].Start != 0 || result[0].End != len(text) {
		t.Errorf("unexpected offsets %d-%d", result[0].Start, result[0].End)
	}
}

func TestChunk_PacksSentences(t *testing.T) {
	opts := Options{TargetSize: 60, MaxSize: 80}
	text := "Bob asked about the exam. I told him it is on Monday. " +
		"We agreed to study together. He will bring his notes! Should I bake cookies?"

	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}
	for i, c := range result {
		if len(c.Text) > opts.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
		if text[c.Start:c.End] != c.Text {
			t.Errorf("chunk %d offsets do not match its text", i)
		}
		if !strings.HasSuffix(c.Text, ".") && !strings.HasSuffix(c.Text, "!") && !strings.HasSuffix(c.Text, "?") {
			t.Errorf("chunk %d does not end on a sentence: %q", i, c.Text)
		}
	}
	if !strings.HasPrefix(result[0].Text, "Bob asked about the exam. I told him") {
		t.Errorf("first chunk should pack the first two sentences, got %q", result[0].Text)
	}
}

func TestChunk_SplitsLongSentence(t *testing.T) {
	opts := Options{TargetSize: 50, MaxSize: 80}
	text := strings.Repeat("word ", 60) + "end."

	result := Chunk(text, opts)
	if len(result) < 3 {
		t.Fatalf("expected the sentence to be split, got %d chunks", len(result))
	}
	var rebuilt []string
	for i, c := range result {
		if len(c.Text) > opts.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
		rebuilt = append(rebuilt, c.Text)
	}
	if got := strings.Join(rebuilt, " "); got != strings.TrimSpace(text) {
		t.Errorf("chunks do not cover the text:\n%q", got)
	}
}

func TestChunk_ZeroOptionsUseDefaults(t *testing.T) {
	result := Chunk(strings.Repeat("A sentence here. ", 40), Options{})
	if len(result) < 2 {
		t.Fatalf("expected default options to split, got %d", len(result))
	}
}

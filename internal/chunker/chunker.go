// Package chunker splits memory descriptions into sentence-aligned chunks for
// full-text indexing.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultTargetSize = 240
	DefaultMaxSize    = 400
)

// Options configures chunking behavior.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// ChunkResult is a chunk and its byte offsets in the trimmed input.
type ChunkResult struct {
	Text  string
	Start int
	End   int
}

// Chunk splits text into chunks. Text no longer than MaxSize is one chunk.
// Longer text is cut at sentence ends and sentences are packed up to
// TargetSize; a sentence longer than MaxSize is cut between words.
func Chunk(text string, opts Options) []ChunkResult {
	if opts.TargetSize <= 0 || opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []ChunkResult{{Text: text, Start: 0, End: len(text)}}
	}

	var out []ChunkResult
	var cur *ChunkResult
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, s := range sentences(text) {
		if s.End-s.Start > opts.MaxSize {
			flush()
			out = append(out, splitWords(text, s, opts)...)
			continue
		}
		if cur != nil && s.End-cur.Start <= opts.TargetSize {
			cur.End = s.End
			cur.Text = text[cur.Start:cur.End]
			continue
		}
		flush()
		c := s
		cur = &c
	}
	flush()
	return out
}

// sentences cuts text after '.', '!' or '?' followed by whitespace, and at
// line breaks.
func sentences(text string) []ChunkResult {
	var out []ChunkResult
	start := 0
	emit := func(end int) {
		seg := text[start:end]
		trimmed := strings.TrimSpace(seg)
		if trimmed != "" {
			lead := strings.Index(seg, trimmed)
			s := start + lead
			out = append(out, ChunkResult{Text: trimmed, Start: s, End: s + len(trimmed)})
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			emit(i + 1)
		case '.', '!', '?':
			if i+1 < len(text) && unicode.IsSpace(rune(text[i+1])) {
				emit(i + 1)
			}
		}
	}
	emit(len(text))
	return out
}

// splitWords breaks one oversized sentence on spaces, targeting TargetSize.
func splitWords(text string, s ChunkResult, opts Options) []ChunkResult {
	var out []ChunkResult
	start := s.Start
	lastSpace := -1
	for i := s.Start; i < s.End; i++ {
		if text[i] == ' ' {
			lastSpace = i
		}
		if i-start >= opts.TargetSize && lastSpace > start {
			out = append(out, ChunkResult{Text: text[start:lastSpace], Start: start, End: lastSpace})
			start = lastSpace + 1
			lastSpace = -1
		}
	}
	if start < s.End {
		out = append(out, ChunkResult{Text: text[start:s.End], Start: start, End: s.End})
	}
	return out
}

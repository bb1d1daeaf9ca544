package retrieval

import "strings"

// Chunk is one contiguous window of a source document, prior to embedding.
type Chunk struct {
	Ordinal int
	Text    string
}

var sentenceEnders = []byte{'.', '!', '?'}

// ChunkText splits text into windows of at most maxChars, overlapping
// consecutive windows by overlapChars. A window boundary prefers the last
// sentence end within the window; if none exists past the window's midpoint,
// it hard-breaks at maxChars to guarantee forward progress on text with no
// punctuation (logs, code, ID lists).
func ChunkText(text string, maxChars, overlapChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 1000
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []Chunk
	start := 0
	idx := 0
	for start < len(text) {
		end := start + maxChars
		if end >= len(text) {
			end = len(text)
		} else if boundary := lastSentenceEnd(text, start, end); boundary > start+maxChars/2 {
			end = boundary
		}

		window := strings.TrimSpace(text[start:end])
		if window != "" {
			out = append(out, Chunk{Ordinal: idx, Text: window})
			idx++
		}

		if end >= len(text) {
			break
		}
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastSentenceEnd returns the offset just after the last sentence-ending
// punctuation mark in text[start:end], or -1 if none is found.
func lastSentenceEnd(text string, start, end int) int {
	window := text[start:end]
	best := -1
	for i := len(window) - 1; i >= 0; i-- {
		for _, e := range sentenceEnders {
			if window[i] == e {
				best = start + i + 1
				break
			}
		}
		if best != -1 {
			return best
		}
	}
	return -1
}

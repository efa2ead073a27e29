package parser

import "strings"

// Chunk is a contiguous run of lines from one file
type Chunk struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Index     int    `json:"index"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

type paragraph struct {
	start, end int
	text       string
}

// SplitText packs blank-line separated paragraphs into chunks of at most
// maxSize bytes. A paragraph longer than maxSize becomes a chunk of its own.
func SplitText(text string, maxSize int) []Chunk {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}
	if maxSize <= 0 {
		maxSize = len(text)
	}

	var (
		chunks  []Chunk
		current []paragraph
		size    int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, len(current))
		for i, p := range current {
			parts[i] = p.text
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			StartLine: current[0].start,
			EndLine:   current[len(current)-1].end,
			Content:   strings.Join(parts, "\n\n"),
		})
		current, size = nil, 0
	}

	for _, p := range paragraphs {
		added := len(p.text)
		if len(current) > 0 {
			added += 2
		}
		if size+added > maxSize && len(current) > 0 {
			flush()
			added = len(p.text)
		}
		current = append(current, p)
		size += added
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []paragraph {
	var (
		out   []paragraph
		lines []string
		start int
	)
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(lines) > 0 {
				out = append(out, paragraph{start: start, end: i, text: strings.Join(lines, "\n")})
				lines = nil
			}
			continue
		}
		if len(lines) == 0 {
			start = i + 1
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	if len(lines) > 0 {
		out = append(out, paragraph{start: start, end: start + len(lines) - 1, text: strings.Join(lines, "\n")})
	}
	return out
}

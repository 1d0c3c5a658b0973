package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is used when Split receives a non-positive size.
const DefaultMaxChunkSize = 1000

const separator = ". "

var sentenceTerminators = regexp.MustCompile(`[.!?]+`)

// Sentences splits text on runs of '.', '!' and '?' and returns the trimmed,
// non-empty pieces in their original order.
func Sentences(text string) []string {
	parts := sentenceTerminators.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Split greedily packs sentences into chunks. A sentence joins the current
// chunk while the runes already buffered plus the sentence plus one stay within
// maxChunkSize; the ". " joiner is not counted, so a packed chunk may run up to
// two runes past the limit once its closing '.' is added. A sentence is never
// cut: one longer than maxChunkSize becomes its own chunk.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var (
		chunks []string
		buf    strings.Builder
		size   int // runes in buf
	)
	flush := func() {
		if size == 0 {
			return
		}
		chunks = append(chunks, buf.String()+".")
		buf.Reset()
		size = 0
	}

	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if size+n+1 <= maxChunkSize {
			if size > 0 {
				buf.WriteString(separator)
				size += utf8.RuneCountInString(separator)
			}
			buf.WriteString(sentence)
			size += n
			continue
		}
		flush()
		buf.WriteString(sentence)
		size = n
	}
	flush()
	return chunks
}

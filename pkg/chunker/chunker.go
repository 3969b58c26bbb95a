package chunker

import (
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Span is one contiguous chunk of a source document. Position is the
// zero-based chunk index within the document.
type Span struct {
	Text     string
	Position int
}

// Chunker splits document text into token-budgeted, sentence-aligned chunks
// with a configurable sentence overlap between consecutive chunks. Splitting
// is a pure function of the input text and the chunker configuration.
type Chunker struct {
	encoder          string
	targetTokens     int
	overlapSentences int
}

// NewChunkerParams configures a Chunker.
type NewChunkerParams struct {
	// TokenEncoder names the tiktoken encoding used for budgeting.
	TokenEncoder string
	// TargetTokens is the token budget per chunk.
	TargetTokens int
	// OverlapSentences repeats this many trailing sentences at the start of
	// the following chunk so statements split across a boundary keep their
	// context.
	OverlapSentences int
}

// NewChunker creates a chunker with the given parameters.
func NewChunker(params NewChunkerParams) *Chunker {
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	target := params.TargetTokens
	if target <= 0 {
		target = 600
	}
	overlap := params.OverlapSentences
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{
		encoder:          encoder,
		targetTokens:     target,
		overlapSentences: overlap,
	}
}

// Split chunks the given text. Empty or whitespace-only input yields zero
// chunks; this is not an error for the caller's batch.
func (c *Chunker) Split(text string) ([]Span, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	enc, err := tiktoken.GetEncoding(c.encoder)
	if err != nil {
		return nil, err
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	tokenCounts := make([]int, len(sentences))
	for i, sentence := range sentences {
		tokenCounts[i] = len(enc.Encode(sentence, nil, nil))
	}

	var spans []Span
	start := 0
	for start < len(sentences) {
		end := start
		tokens := 0
		for end < len(sentences) {
			next := tokens + tokenCounts[end]
			// A single oversized sentence still becomes its own chunk.
			if next > c.targetTokens && end > start {
				break
			}
			tokens = next
			end++
		}

		spans = append(spans, Span{
			Text:     strings.Join(sentences[start:end], " "),
			Position: len(spans),
		})

		if end >= len(sentences) {
			break
		}
		nextStart := end - c.overlapSentences
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}

	return spans, nil
}

// splitIntoSentences breaks text into sentences, treating blank lines as
// hard boundaries and merging wrapped lines into one sentence.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		for _, sentence := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)

			if endsSentence(sentence) {
				flush()
			}
		}
	}
	flush()

	var result []string
	for _, sentence := range sentences {
		if strings.TrimSpace(sentence) != "" {
			result = append(result, sentence)
		}
	}
	return result
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			// "1. First item" style listings are not sentence ends.
			if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
				continue
			}

			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}
			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}

			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}

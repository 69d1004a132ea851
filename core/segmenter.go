package voicesession

import (
	"strings"
	"unicode"
)

const defaultMinSentenceLength = 20

var sentenceTerminators = map[rune]bool{'.': true, '!': true, '?': true}

// sentenceSegmenter turns streamed text deltas into speakable segments. A
// segment ends at a sentence terminator followed by whitespace, once the
// accumulated text is long enough to be worth synthesizing on its own.
//
// Not safe for concurrent use; the orchestrator feeds it from one goroutine.
type sentenceSegmenter struct {
	buffer    strings.Builder
	minLength int
}

func newSentenceSegmenter(minLength int) *sentenceSegmenter {
	if minLength <= 0 {
		minLength = defaultMinSentenceLength
	}
	return &sentenceSegmenter{minLength: minLength}
}

// push appends a delta and returns any segments completed by it, in order.
func (s *sentenceSegmenter) push(delta string) []string {
	if delta == "" {
		return nil
	}
	s.buffer.WriteString(delta)

	var segments []string
	for {
		segment, rest, ok := cutSentence(s.buffer.String(), s.minLength)
		if !ok {
			break
		}
		segments = append(segments, segment)
		s.buffer.Reset()
		s.buffer.WriteString(rest)
	}
	return segments
}

// flush drains whatever is left, terminator or not. Called once the stream
// has ended.
func (s *sentenceSegmenter) flush() string {
	remainder := strings.TrimSpace(s.buffer.String())
	s.buffer.Reset()
	return remainder
}

// cutSentence finds the first terminator-then-whitespace boundary whose
// prefix meets the minimum length and splits there.
func cutSentence(text string, minLength int) (segment, rest string, ok bool) {
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if !sentenceTerminators[runes[i]] || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		candidate := strings.TrimSpace(string(runes[:i+1]))
		if len(candidate) < minLength {
			continue
		}
		return candidate, string(runes[i+1:]), true
	}
	return "", "", false
}

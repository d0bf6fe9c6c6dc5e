package transcript

import (
	"regexp"
	"strings"
	"sync"
)

var DefaultStopKeywords = []string{"stop", "silence", "shut up", "quiet"}

// KeywordDetector finds stop keywords in a growing transcript. Each
// occurrence is reported once; Reset forgets what was already reported.
type KeywordDetector struct {
	pattern *regexp.Regexp

	mu     sync.Mutex
	offset int
}

// NewKeywordDetector matches keywords case-insensitively on word
// boundaries. Multi-word keywords tolerate any whitespace between words.
func NewKeywordDetector(keywords ...string) *KeywordDetector {
	if len(keywords) == 0 {
		keywords = DefaultStopKeywords
	}

	alternatives := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		words := strings.Fields(keyword)
		if len(words) == 0 {
			continue
		}
		for i, word := range words {
			words[i] = regexp.QuoteMeta(word)
		}
		alternatives = append(alternatives, strings.Join(words, `\s+`))
	}

	detector := &KeywordDetector{}
	if len(alternatives) > 0 {
		detector.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
	}
	return detector
}

// MatchAfter reports the end of the first keyword match in text that ends
// beyond offset.
func (d *KeywordDetector) MatchAfter(text string, offset int) (int, bool) {
	if d.pattern == nil {
		return 0, false
	}
	for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
		if loc[1] > offset {
			return loc[1], true
		}
	}
	return 0, false
}

// Detect reports whether text holds a keyword occurrence that was not
// reported before.
func (d *KeywordDetector) Detect(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(text) < d.offset {
		d.offset = 0
	}
	end, ok := d.MatchAfter(text, d.offset)
	if !ok {
		return false
	}
	d.offset = end
	return true
}

// Reset is called when the buffer the detector watches is flushed.
func (d *KeywordDetector) Reset() {
	d.mu.Lock()
	d.offset = 0
	d.mu.Unlock()
}

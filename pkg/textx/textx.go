// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?]+)(?:\s+|$)`)

// SplitSentences performs whitespace/punctuation-based sentence segmentation.
// This is the downgrade path used when no dependency
// parser is available: sentence boundaries on '.', '!', '?' runs.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	idxs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, m := range idxs {
		end := m[1]
		s := strings.TrimSpace(text[start:end])
		if s != "" {
			out = append(out, s)
		}
		start = end
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ContrastivePivots are the pivot words the clause-selection heuristic
// splits a sentence around.
var ContrastivePivots = []string{"however", "but", "though", "although", "yet", "nevertheless", "still"}

// SplitOnPivot splits a sentence around the first contrastive pivot word it
// contains (case-insensitive, whole-word). Returns ok=false if none found.
func SplitOnPivot(sentence string) (before, pivot, after string, ok bool) {
	lower := strings.ToLower(sentence)
	bestIdx := -1
	bestWord := ""
	for _, w := range ContrastivePivots {
		re := regexp.MustCompile(`(?i)(?:^|\W)` + regexp.QuoteMeta(w) + `(?:\W|$)`)
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		if bestIdx == -1 || loc[0] < bestIdx {
			bestIdx = loc[0]
			bestWord = w
		}
	}
	if bestIdx == -1 {
		return "", "", "", false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(bestWord) + `\b`)
	loc := re.FindStringIndex(sentence)
	if loc == nil {
		return "", "", "", false
	}
	return strings.TrimSpace(sentence[:loc[0]]), sentence[loc[0]:loc[1]], strings.TrimSpace(sentence[loc[1]:]), true
}

// WordBoundaryPattern builds the regex used to register cast
// member aliases: `(?<![0-9a-z]){alias}(?![0-9a-z])`. Go's RE2 engine has no
// lookaround, so this approximates it case-insensitively by matching the
// boundary (start/end of text or a non-alphanumeric character) in groups 1
// and 3, which are consumed; group 2 is the alias span itself.
func WordBoundaryPattern(alias string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(strings.ToLower(alias))
	return regexp.MustCompile(`(?i)(^|[^0-9a-zA-Z])(` + escaped + `)($|[^0-9a-zA-Z])`)
}

// Package entitylinker implements the entity linker: an
// alias map + word-boundary regex exact scan, a capitalized-span heuristic
// standing in for a dependency-parser NER pass, levenshtein-based fuzzy
// matching, and parent-context mention inheritance.
package entitylinker

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/pkg/textx"
)

// MentionCandidate is one linker hit before sentiment scoring.
type MentionCandidate struct {
	CastMemberID string
	Confidence   float64
	Method       domain.MentionMethod
	Quote        string
}

type aliasPattern struct {
	alias        string
	castMemberID string
	pattern      *regexp.Regexp
}

// Linker holds the built alias index for the active cast roster.
type Linker struct {
	aliasToID     map[string]string // lowercase alias -> cast_member_id
	patterns      []aliasPattern
	canonicalName map[string]string // cast_member_id -> display name
	fuzzyMinScore float64
	fuzzyMinLen   int
}

var capitalizedSpan = regexp.MustCompile(`\b[A-Z][a-zA-Z']+(?:\s+[A-Z][a-zA-Z']+){0,3}\b`)

// Build assembles the alias index from the active cast catalog. rosterAliases
// is an optional slug->aliases map sourced from a YAML roster file, unioned
// with each member's admin-managed Aliases column.
func Build(members []domain.CastMember, rosterAliases map[string][]string, fuzzyMinScore float64, fuzzyMinLen int) *Linker {
	l := &Linker{
		aliasToID:     map[string]string{},
		canonicalName: map[string]string{},
		fuzzyMinScore: fuzzyMinScore,
		fuzzyMinLen:   fuzzyMinLen,
	}
	if l.fuzzyMinScore <= 0 {
		l.fuzzyMinScore = 0.85
	}
	if l.fuzzyMinLen <= 0 {
		l.fuzzyMinLen = 4
	}

	for _, m := range members {
		if !m.IsActive {
			continue
		}
		name := m.DisplayName
		if name == "" {
			name = m.FullName
		}
		l.canonicalName[m.ID] = name

		aliases := []string{m.FullName, m.DisplayName, strings.ReplaceAll(m.Slug, "-", " ")}
		aliases = append(aliases, m.Aliases...)
		aliases = append(aliases, rosterAliases[m.Slug]...)

		for _, alias := range aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			lower := strings.ToLower(alias)
			if _, exists := l.aliasToID[lower]; exists {
				continue
			}
			l.aliasToID[lower] = m.ID
			l.patterns = append(l.patterns, aliasPattern{
				alias:        lower,
				castMemberID: m.ID,
				pattern:      textx.WordBoundaryPattern(alias),
			})
		}
	}
	return l
}

// FindMentions finds mentions via exact alias scan,
// capitalized-span heuristic (NER substitute), fuzzy matching, then
// per-cast-member dedup keeping the highest-confidence candidate.
func (l *Linker) FindMentions(text string) []MentionCandidate {
	best := map[string]MentionCandidate{}

	consider := func(c MentionCandidate) {
		cur, ok := best[c.CastMemberID]
		if !ok || c.Confidence > cur.Confidence {
			best[c.CastMemberID] = c
		}
	}

	exactMatched := map[string]bool{}
	for _, ap := range l.patterns {
		loc := ap.pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		// group 2 is the alias span itself.
		quote := text[loc[4]:loc[5]]
		consider(MentionCandidate{
			CastMemberID: ap.castMemberID,
			Confidence:   0.95,
			Method:       domain.MethodExact,
			Quote:        quote,
		})
		exactMatched[ap.castMemberID] = true
	}

	for _, span := range capitalizedSpan.FindAllString(text, -1) {
		lower := strings.ToLower(span)
		if id, ok := l.aliasToID[lower]; ok {
			// The capitalized-span scan is an alias-match heuristic standing in
			// for a real NER pass, not an independent entity signal: when the
			// exact alias scan above already found this cast member, there is
			// nothing new to report here, so leave its MethodExact candidate
			// alone rather than re-scoring the same span as exact_ner.
			if exactMatched[id] {
				continue
			}
			consider(MentionCandidate{CastMemberID: id, Confidence: 0.98, Method: domain.MethodExactNER, Quote: span})
			continue
		}
		if len(span) < l.fuzzyMinLen {
			continue
		}
		id, score, ok := l.bestFuzzyMatch(lower)
		if ok {
			consider(MentionCandidate{CastMemberID: id, Confidence: score, Method: domain.MethodFuzzy, Quote: span})
		}
	}

	out := make([]MentionCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

// bestFuzzyMatch scores span against every known alias using a
// partial-ratio-style normalized levenshtein distance, returning the best
// match at or above the configured threshold.
func (l *Linker) bestFuzzyMatch(span string) (string, float64, bool) {
	var bestID string
	var bestScore float64
	for alias, id := range l.aliasToID {
		score := partialRatio(span, alias)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}
	if bestScore >= l.fuzzyMinScore {
		return bestID, bestScore, true
	}
	return "", 0, false
}

// partialRatio approximates a partial-ratio fuzzy score in [0,1]: the best
// normalized levenshtein similarity, over the shorter string's length, between
// the shorter string and each equal-length window of the longer one, which
// rewards a short alias fully contained (with minor edits) in a longer span
// or vice versa.
func partialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return 0
	}
	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		dist := levenshtein.ComputeDistance(shorter, longer[i:i+len(shorter)])
		score := 1.0 - float64(dist)/float64(len(shorter))
		if score > best {
			best = score
		}
	}
	return best
}

// ApplyParentContext implements parent-context inheritance:
// any parent-comment mention whose cast member is absent from the current
// candidate set is carried forward at fixed confidence 0.55.
func (l *Linker) ApplyParentContext(current []MentionCandidate, parentMentions []MentionCandidate) []MentionCandidate {
	present := map[string]bool{}
	for _, c := range current {
		present[c.CastMemberID] = true
	}
	out := append([]MentionCandidate{}, current...)
	for _, p := range parentMentions {
		if present[p.CastMemberID] {
			continue
		}
		out = append(out, MentionCandidate{
			CastMemberID: p.CastMemberID,
			Confidence:   0.55,
			Method:       domain.MethodInheritedContext,
			Quote:        l.canonicalName[p.CastMemberID],
		})
		present[p.CastMemberID] = true
	}
	return out
}

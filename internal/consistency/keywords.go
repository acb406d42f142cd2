package consistency

import "strings"

// Keyword tables for the substring heuristics. Kept as explicit lists so
// each category can be tuned and unit-tested on its own instead of living
// inline in the scoring code. All matching is lowercase substring matching.

// DangerWords contradict a cleared area.
var DangerWords = []string{"ambush", "guards", "enemies", "attack", "danger", "threat"}

// AccessWords contradict a locked area.
var AccessWords = []string{"enter", "inside", "walk into", "step into", "through the"}

// IntactWords contradict a destroyed area.
var IntactWords = []string{"intact", "standing", "unscathed", "pristine"}

// FriendlyWords contradict a hostile NPC relationship.
var FriendlyWords = []string{"smiles", "greets warmly", "welcomes", "friendly", "kindly", "helps"}

// HostileWords contradict a friendly NPC relationship.
var HostileWords = []string{"attacks", "threatens", "glares", "hostile", "snarls"}

// ReunionWords contradict a first meeting.
var ReunionWords = []string{"again", "once more", "returns", "back", "remember"}

// stopwords are excluded from goal content-word extraction and from the
// repetition word sets.
var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "with": true, "from": true,
	"this": true, "have": true, "will": true, "your": true, "into": true,
	"them": true, "then": true, "than": true, "they": true, "their": true,
	"there": true, "where": true, "when": true, "what": true, "which": true,
	"would": true, "could": true, "should": true, "about": true, "after": true,
	"before": true, "must": true, "been": true, "were": true, "you": true,
}

// containsAny reports the first listed word found as a substring of text.
// text must already be lowercased.
func containsAny(text string, words []string) (string, bool) {
	for _, w := range words {
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// contentWords extracts lowercase words longer than three characters that
// are not stopwords, preserving first-occurrence order.
func contentWords(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range splitWords(text) {
		if len(w) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// splitWords lowercases and splits on anything that is not a letter or digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z')
	})
}

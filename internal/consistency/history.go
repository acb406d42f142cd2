package consistency

// HistoryBuffer remembers the content-word sets of recently committed
// narrations so the repetition dimension has something to compare against.
// The orchestrator calls Remember only after a turn commits, which keeps
// failed turns from polluting the buffer.
type HistoryBuffer struct {
	max     int
	entries []map[string]bool
}

// NewHistoryBuffer returns a buffer remembering up to max narrations.
func NewHistoryBuffer(max int) *HistoryBuffer {
	if max <= 0 {
		max = 8
	}
	return &HistoryBuffer{max: max}
}

// Add records a narration's content-word set, evicting the oldest entry
// once the buffer is full.
func (h *HistoryBuffer) Add(narration string) {
	set := wordSet(narration)
	if len(set) == 0 {
		return
	}
	h.entries = append(h.entries, set)
	if len(h.entries) > h.max {
		h.entries = h.entries[1:]
	}
}

// Len returns the number of remembered narrations.
func (h *HistoryBuffer) Len() int {
	return len(h.entries)
}

// MaxSimilarity returns the highest Jaccard similarity between the given
// narration's content words and any remembered narration. Zero when the
// buffer is empty.
func (h *HistoryBuffer) MaxSimilarity(narration string) float64 {
	set := wordSet(narration)
	if len(set) == 0 {
		return 0
	}
	best := 0.0
	for _, prev := range h.entries {
		if sim := jaccard(set, prev); sim > best {
			best = sim
		}
	}
	return best
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range splitWords(text) {
		if len(w) > 3 && !stopwords[w] {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

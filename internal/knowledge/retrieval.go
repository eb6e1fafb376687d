package knowledge

import (
	"sort"
	"strings"

	"intake-agent/internal/domain"
)

// DefaultTopK is the number of snippets fed into the chat prompt.
const DefaultTopK = 7

// TopK ranks corpus entries by how many lower-cased, whitespace-split query tokens
// occur as substrings of the lower-cased question. Entries scoring zero are
// dropped; ties keep corpus order.
func TopK(query string, corpus []domain.QAPair, k int) []domain.QAPair {
	if k <= 0 || len(corpus) == 0 {
		return nil
	}
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		pair  domain.QAPair
		score int
	}
	hits := make([]scored, 0, len(corpus))
	for _, p := range corpus {
		q := strings.ToLower(p.Question)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(q, tok) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{pair: p, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.QAPair, len(hits))
	for i, h := range hits {
		out[i] = h.pair
	}
	return out
}

// FormatSnippets renders pairs as Q/A blocks for prompt assembly.
func FormatSnippets(pairs []domain.QAPair) string {
	blocks := make([]string, 0, len(pairs))
	for _, p := range pairs {
		blocks = append(blocks, "Q: "+strings.TrimSpace(p.Question)+"\nA: "+strings.TrimSpace(p.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

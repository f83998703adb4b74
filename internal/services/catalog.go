package services

import (
	"strings"

	"github.com/ScottJutras/chief-ai-backend/internal/utils"
)

// similarityFloor is the minimum normalized edit-distance similarity
// for a catalog hit; below it the message falls through to the
// statistical stage.
const similarityFloor = 0.72

// SynonymCatalog maps colloquial phrasings to intent families by
// normalized edit-distance similarity.
type SynonymCatalog struct {
	entries []catalogEntry
}

type catalogEntry struct {
	phrase string
	family string
}

// DefaultSynonymCatalog is the built-in catalog. Phrases are compared
// lowercased and whitespace-collapsed.
func DefaultSynonymCatalog() *SynonymCatalog {
	return &SynonymCatalog{entries: []catalogEntry{
		{"log an expense", IntentExpense},
		{"record an expense", IntentExpense},
		{"add expense", IntentExpense},
		{"track a purchase", IntentExpense},
		{"log revenue", IntentRevenue},
		{"record a payment", IntentRevenue},
		{"add income", IntentRevenue},
		{"got money in", IntentRevenue},
		{"punch in", IntentTimeclock},
		{"punch out", IntentTimeclock},
		{"start my timer", IntentTimeclock},
		{"stop my timer", IntentTimeclock},
		{"start a new job", IntentJob},
		{"open a job", IntentJob},
		{"wrap up the job", IntentJob},
		{"what jobs do i have", IntentJob},
		{"add a todo", IntentTask},
		{"make a task", IntentTask},
		{"what's on my list", IntentTask},
		{"move my last entry", IntentMoveLog},
		{"reassign the last one", IntentMoveLog},
	}}
}

// Match returns the best family above the similarity floor. Ties go to
// the longer, more specific synonym.
func (c *SynonymCatalog) Match(text string) (family string, score float64, ok bool) {
	needle := strings.ToLower(utils.CleanText(text))
	if needle == "" {
		return "", 0, false
	}

	bestLen := 0
	for _, e := range c.entries {
		s := similarity(needle, e.phrase)
		if s < similarityFloor {
			continue
		}
		if s > score || (s == score && len(e.phrase) > bestLen) {
			score = s
			family = e.family
			bestLen = len(e.phrase)
			ok = true
		}
	}
	return family, score, ok
}

// similarity is 1 - levenshtein/maxlen.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(max)
}

// levenshtein computes edit distance with a single rolling row.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur := i
		diag := i - 1
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := diag + cost
			if v := prev[j] + 1; v < next {
				next = v
			}
			if v := cur + 1; v < next {
				next = v
			}
			diag = prev[j]
			prev[j-1] = cur
			cur = next
		}
		prev[len(b)] = cur
	}
	return prev[len(b)]
}

package memory

import (
	"sort"
	"strings"
	"unicode"
)

// #region stopwords
// stopwords are excluded from overlap ranking.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"will": true, "would": true, "could": true, "should": true, "can": true,
	"not": true, "no": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"it": true, "its": true, "this": true, "that": true, "what": true,
	"i": true, "my": true, "you": true, "your": true, "me": true,
	"we": true, "they": true, "he": true, "she": true, "them": true,
}

// tokenize splits text into unique lowercase non-stopword tokens.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// #endregion stopwords

// #region rank
// rank scores candidates by the share of query tokens they contain and
// returns the best k with a non-zero score. Ties go to the newer record.
func rank(candidates []Record, query string, k int) []Record {
	if k <= 0 {
		return nil
	}
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}

	var scored []Record
	for _, rec := range candidates {
		set := make(map[string]bool)
		for _, t := range tokenize(rec.Text) {
			set[t] = true
		}
		hits := 0
		for _, t := range qTokens {
			if set[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		rec.Score = float64(hits) / float64(len(qTokens))
		scored = append(scored, rec)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// tail returns the last k records in their original order.
func tail(records []Record, k int) []Record {
	if k <= 0 {
		return nil
	}
	if len(records) > k {
		records = records[len(records)-k:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// #endregion rank

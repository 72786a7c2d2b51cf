package services

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TokenSetRatio scores lexical similarity between two strings on a 0-100
// scale. Both strings are lowercased and tokenized on non-alphanumeric
// characters; the score is the best pairwise ratio among the sorted token
// intersection and each side's intersection-plus-remainder string, which
// makes the measure insensitive to word order and to extra tokens shared by
// neither side.
func TokenSetRatio(a, b string) int {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := uniqueSorted(tokensA)
	setB := uniqueSorted(tokensB)

	intersection, diffA, diffB := splitTokenSets(setA, setB)

	t0 := strings.Join(intersection, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(diffA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(diffB, " "))

	best := levenshteinRatio(t0, t1)
	if r := levenshteinRatio(t0, t2); r > best {
		best = r
	}
	if r := levenshteinRatio(t1, t2); r > best {
		best = r
	}
	return best
}

// levenshteinRatio is the classic similarity ratio: edit distance with
// substitutions costing 2, scaled to 0-100 over the combined length.
func levenshteinRatio(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	lensum := len(ra) + len(rb)
	if lensum == 0 {
		return 100
	}
	dist := weightedLevenshtein(ra, rb)
	return int(math.Round(100 * float64(lensum-dist) / float64(lensum)))
}

func weightedLevenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub += 2
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			min := sub
			if del < min {
				min = del
			}
			if ins < min {
				min = ins
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Fields(cleaned)
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// splitTokenSets partitions two sorted unique token slices into the shared
// tokens and each side's remainder, all kept sorted.
func splitTokenSets(a, b []string) (intersection, onlyA, onlyB []string) {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	inA := make(map[string]struct{}, len(a))
	for _, t := range a {
		inA[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := inB[t]; ok {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if _, ok := inA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return intersection, onlyA, onlyB
}

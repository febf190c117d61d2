package taskindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// maxSuggestions caps how many near-misses a NotFoundError lists.
const maxSuggestions = 5

// NotFoundError is returned by Resolve on a miss. It carries up to a few
// similar canonical paths plus the full available list so a CLI can print
// a helpful diagnostic without the index needing to know about output
// formatting.
type NotFoundError struct {
	Raw         string
	Suggestions []string
	Available   []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("taskindex: no task named %q", e.Raw)
	}
	return fmt.Sprintf("taskindex: no task named %q, did you mean: %s?", e.Raw, strings.Join(e.Suggestions, ", "))
}

// Resolve parses raw into a TaskPath, canonicalizes it, and looks it up.
// On a miss it returns a *NotFoundError with best-effort suggestions; it
// never panics, regardless of how pathological raw is.
func (idx *Index) Resolve(raw string) (*IndexedTask, error) {
	path, err := ParseTaskPath(raw)
	if err != nil {
		return nil, &NotFoundError{Raw: raw, Available: idx.Names()}
	}

	canonical := path.Canonical()
	if task, ok := idx.byCanonical[canonical]; ok {
		return task, nil
	}

	return nil, &NotFoundError{
		Raw:         raw,
		Suggestions: idx.suggest(canonical),
		Available:   idx.Names(),
	}
}

// suggest ranks canonical names similar to target: a prefix match always
// qualifies; otherwise a Levenshtein distance of at most 2 qualifies when
// target is 10 characters or shorter; beyond that length, a shared prefix
// of at least 3 characters qualifies instead (edit distance grows with
// string length, so a fixed small distance stops being a useful signal).
func (idx *Index) suggest(target string) []string {
	type scored struct {
		name string
		rank int
	}
	var candidates []scored

	for _, name := range idx.order {
		switch {
		case strings.HasPrefix(name, target) || strings.HasPrefix(target, name):
			candidates = append(candidates, scored{name, 0})
		case len(target) <= 10 && levenshteinDistance(name, target) <= 2:
			candidates = append(candidates, scored{name, 1})
		case sharedPrefixLen(name, target) >= 3:
			candidates = append(candidates, scored{name, 2})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].rank < candidates[j].rank })

	out := make([]string, 0, maxSuggestions)
	for _, c := range candidates {
		if len(out) >= maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}

func levenshteinDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

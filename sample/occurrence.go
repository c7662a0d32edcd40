package sample

import "github.com/dedis/sbrb/key"

// CountOccurrencesSieve returns the weighted count of identities in slots
// whose filled value equals content. Sieve's echo threshold check calls it
// for each distinct reported content until it has delivered.
func CountOccurrencesSieve(set *Set, slots map[key.Identity]*string, content string) int {
	total := 0
	for id, v := range slots {
		if v != nil && *v == content {
			total += set.Duplicate(id)
		}
	}
	return total
}

// CountOccurrencesContagion returns, for every distinct content observed
// across slots, the weighted sum of the duplicate counts of the identities
// that reported it. A single identity counts at most once per distinct
// content even if its slot holds several copies of that content.
func CountOccurrencesContagion(set *Set, slots map[key.Identity][]string) map[string]int {
	occ := make(map[string]int)
	for id, contents := range slots {
		seen := make(map[string]bool, len(contents))
		for _, c := range contents {
			if seen[c] {
				continue
			}
			seen[c] = true
			occ[c] += set.Duplicate(id)
		}
	}
	return occ
}

package models

import "sort"

// CanonicalPair returns the two account ids sorted ascending.
func CanonicalPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// PairKey is the dedup key for an unordered pair of accounts.
func PairKey(a, b string) string {
	pair := CanonicalPair(a, b)
	return pair[0] + ":" + pair[1]
}

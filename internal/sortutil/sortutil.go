// Package sortutil keeps the ordering helpers that make every report and
// cache file deterministic.
package sortutil

import (
	"path/filepath"
	"sort"
)

// StablePathSort returns a new slice containing the input paths sorted
// lexicographically by their slash form. The original slice is not modified.
func StablePathSort(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.SliceStable(out, func(i, j int) bool {
		return filepath.ToSlash(out[i]) < filepath.ToSlash(out[j])
	})
	return out
}

// Keys returns the keys of m in ascending order.
func Keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dedup sorts list and removes duplicates and empty strings.
func Dedup(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

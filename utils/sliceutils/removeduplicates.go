package sliceutils

// RemoveDuplicates returns a copy of in with any repeated entries dropped,
// keeping the first occurrence of each value.  The input is not modified.
func RemoveDuplicates[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Union returns the values of a followed by any values of b which were not
// already present, without duplicates.
func Union[T comparable](a, b []T) []T {
	merged := make([]T, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return RemoveDuplicates(merged)
}

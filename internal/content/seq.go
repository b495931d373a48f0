package content

// Filter returns the elements of items for which keep returns true, in order.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Partition splits items into those matching pred and the rest, preserving
// order in both.
func Partition[T any](items []T, pred func(T) bool) (matched, rest []T) {
	for _, item := range items {
		if pred(item) {
			matched = append(matched, item)
		} else {
			rest = append(rest, item)
		}
	}
	return matched, rest
}

// Map applies fn to every element.
func Map[T, U any](items []T, fn func(T) U) []U {
	out := make([]U, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

// Dedupe drops later elements whose key was already seen.
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	return Filter(items, func(item T) bool {
		k := key(item)
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

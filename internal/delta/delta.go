// Package delta computes minimal text deltas for streaming caption updates.
package delta

// Compute returns the portion of curr not covered by its longest common
// prefix with prev. Streaming STT and MT output is overwhelmingly
// prefix-stable with tail revision, so a prefix-only model captures the
// update signal in O(n).
//
// Operates on code points, never code units, so multi-byte characters are
// not split mid-rune.
func Compute(prev, curr string) string {
	if prev == "" {
		return curr
	}
	if curr == "" {
		return ""
	}

	p := []rune(prev)
	c := []rune(curr)
	n := min(len(p), len(c))
	i := 0
	for i < n && p[i] == c[i] {
		i++
	}
	return string(c[i:])
}

// CommonPrefixLen returns the length in runes of the longest common prefix.
func CommonPrefixLen(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	n := min(len(ra), len(rb))
	i := 0
	for i < n && ra[i] == rb[i] {
		i++
	}
	return i
}

package tagging

// set is a string set built from a slice, ignoring duplicates.
type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(item string) bool {
	_, ok := s[item]
	return ok
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the distinct members of a and
// b. Two empty inputs score 0.
func JaccardSimilarity(a, b []string) float64 {
	sa, sb := newSet(a), newSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}

	shared := 0
	for it := range sa {
		if sb.has(it) {
			shared++
		}
	}
	return float64(shared) / float64(len(sa)+len(sb)-shared)
}

// Shared returns the members of a that also appear in b, in a's order,
// without duplicates.
func Shared(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	sb := newSet(b)
	emitted := make(set, len(a))

	var out []string
	for _, it := range a {
		if sb.has(it) && !emitted.has(it) {
			emitted[it] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

package fuzzy

// Similarity computes the Jaro-Winkler similarity of two strings:
// 1.0 for identical strings, 0 when no characters align, with a bonus
// for a shared prefix of up to 4 characters. Symmetric in its arguments.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	matchDistance := max(len(ra), len(rb))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, len(ra))
	bMatches := make([]bool, len(rb))
	matches := 0

	for i := range ra {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(rb))
		for j := start; j < end; j++ {
			if bMatches[j] || ra[i] != rb[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range ra {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(ra)) + m/float64(len(rb)) + (m-float64(transpositions)/2)/m) / 3

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}

	return jaro + 0.1*float64(prefix)*(1-jaro)
}

// BestMatch returns the index of the candidate most similar to target,
// or -1 if none reaches the threshold.
func BestMatch(candidates []string, target string, threshold float64) int {
	best := -1
	bestScore := 0.0
	for i, candidate := range candidates {
		score := Similarity(candidate, target)
		if score > bestScore && score >= threshold {
			bestScore = score
			best = i
		}
	}
	return best
}

package facematch

// Score returns the cosine similarity of two unit feature vectors clamped to [0, 1].
// Vectors of different or zero length score 0.
func Score(a, b FeatureVector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}

	// Clamp to handle floating point errors.
	if dot > 1 {
		return 1
	}
	if dot < 0 {
		return 0
	}
	return dot
}

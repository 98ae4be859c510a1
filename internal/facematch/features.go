package facematch

import (
	"math"

	"github.com/kozaktomas/lookout/internal/constants"
)

// Extract builds the feature vector of raw photo bytes: a histogram of byte
// values divided by its Euclidean norm. The image is never decoded, so any
// file format works. Returns false for empty input.
func Extract(photo []byte) (FeatureVector, bool) {
	if len(photo) == 0 {
		return nil, false
	}

	var hist [constants.FeatureDim]float64
	for _, b := range photo {
		hist[b]++
	}

	return normalize(hist[:])
}

// normalize scales v to unit length. A zero vector has no direction and is reported absent.
func normalize(v []float64) (FeatureVector, bool) {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return nil, false
	}

	norm := math.Sqrt(sumSq)
	out := make(FeatureVector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, true
}

// FromFloat32 converts a stored float32 vector back to a unit FeatureVector.
// Renormalizes to undo float32 rounding. Returns false for wrong length or zero vectors.
func FromFloat32(v []float32) (FeatureVector, bool) {
	if len(v) != constants.FeatureDim {
		return nil, false
	}
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return normalize(f)
}

// Float32 converts the vector for storage in float32 columns and indexes.
func (v FeatureVector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

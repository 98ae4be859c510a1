// Package facematch cross-references photos of missing persons with photos of
// sightings. A photo is reduced to a byte-value histogram, histograms are
// compared with cosine similarity, and a threshold policy decides what counts
// as a match.
package facematch

// FeatureVector is a unit-length byte histogram of a photo (FeatureDim buckets).
type FeatureVector []float64

// MatchResult links the photographed source entity to a candidate of the opposite kind.
type MatchResult struct {
	SourceID    string  `json:"source_id"`
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
}

// SkipReason explains why a candidate produced no comparison.
type SkipReason string

// Skip reasons reported to a SkipRecorder.
const (
	SkipNoPhoto       SkipReason = "no_photo"
	SkipUnreadable    SkipReason = "unreadable"
	SkipAbsentFeature SkipReason = "absent_feature"
	SkipTimeout       SkipReason = "timeout"
)

// SkipRecorder receives one call per skipped candidate.
type SkipRecorder interface {
	RecordSkip(reason SkipReason)
}

// ScanResult is the outcome of one cross-reference run.
type ScanResult struct {
	Matches      []MatchResult
	Candidates   int
	Compared     int
	Skipped      map[SkipReason]int
	SourceAbsent bool // the source photo yielded no feature vector
	TimedOut     bool
}

// SkippedTotal returns the number of skipped candidates across all reasons.
func (r *ScanResult) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Feature extraction constants
const (
	// FeatureDim is the length of a photo feature vector (one bucket per byte value)
	FeatureDim = 256
)

// Matching constants
const (
	// DefaultMatchThreshold is the minimum similarity score for a face match.
	// Very strict: the byte histogram is a coarse signature and a false
	// match notification reaches the family of a missing person.
	DefaultMatchThreshold = 0.96

	// DefaultScanConcurrency is the default number of concurrent photo reads per cross-reference run
	DefaultScanConcurrency = 8

	// DefaultScanTimeout bounds one cross-reference run
	DefaultScanTimeout = 30 * time.Second

	// DefaultFeatureCacheTTL is how long extracted vectors stay in the in-process cache
	DefaultFeatureCacheTTL = time.Hour

	// FeatureCacheCleanupInterval is how often expired cache entries are purged
	FeatureCacheCleanupInterval = 10 * time.Minute
)

// Notification constants
const (
	// NotificationTypeFaceMatch marks notifications created by photo matching
	NotificationTypeFaceMatch = "face_match"

	// NotificationTypeSighting marks notifications about a sighting filed against a report
	NotificationTypeSighting = "sighting"

	// DefaultNotificationLimit is the default page size when listing notifications
	DefaultNotificationLimit = 100
)

// Message channel constants
const (
	// DefaultChannelTimeout is the HTTP timeout for one channel request
	DefaultChannelTimeout = 10 * time.Second

	// DefaultChannelRatePerSecond limits outgoing channel requests
	DefaultChannelRatePerSecond = 5

	// ChannelMaxElapsedRetry bounds retries of one channel send
	ChannelMaxElapsedRetry = 30 * time.Second
)

// Operator lookup constants
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// DefaultSimilarK is the default number of neighbours printed by the similar command
	DefaultSimilarK = 10
)

// File upload constants
const (
	// MaxUploadSize is the maximum photo upload size in bytes (32MB)
	MaxUploadSize = 32 << 20
)

package database

import (
	"context"
	"fmt"
)

// FeatureIndexRebuilder is implemented by backends that can feed the operator lookup index
type FeatureIndexRebuilder interface {
	// RebuildFeatureIndex rebuilds the in-memory HNSW index from stored features
	RebuildFeatureIndex(ctx context.Context) error
	// FeatureIndex returns the current index, or nil if it was never built
	FeatureIndex() *FeatureIndex
}

var (
	backendName          string
	backendReports       func() ReportWriter
	backendSightings     func() SightingWriter
	backendCorpus        func() CorpusReader
	backendNotifications func() NotificationStore
	backendFeatureIndex  FeatureIndexRebuilder // Singleton for index rebuilding
	backendInitialized   bool
)

// RegisterBackend registers repository constructors for the active database backend.
// This is called by the postgres or mariadb wiring to avoid import cycles.
func RegisterBackend(
	name string,
	reports func() ReportWriter,
	sightings func() SightingWriter,
	corpus func() CorpusReader,
	notifications func() NotificationStore,
) {
	backendName = name
	backendReports = reports
	backendSightings = sightings
	backendCorpus = corpus
	backendNotifications = notifications
	backendInitialized = true
}

// RegisterFeatureIndexRebuilder registers the backend that owns the feature index.
func RegisterFeatureIndexRebuilder(rebuilder FeatureIndexRebuilder) {
	backendFeatureIndex = rebuilder
}

// GetFeatureIndexRebuilder returns the registered rebuilder, or nil if not registered.
func GetFeatureIndexRebuilder() FeatureIndexRebuilder {
	return backendFeatureIndex
}

// IsInitialized returns whether a database backend has been registered.
func IsInitialized() bool {
	return backendInitialized
}

// BackendName returns the name of the registered backend (postgres or mysql).
func BackendName() string {
	return backendName
}

func checkBackend(what string, registered bool) error {
	if !backendInitialized {
		return fmt.Errorf("database backend not initialized: DATABASE_URL is required")
	}
	if !registered {
		return fmt.Errorf("%s %s not registered", backendName, what)
	}
	return nil
}

// GetReportWriter returns a ReportWriter from the registered backend
func GetReportWriter(ctx context.Context) (ReportWriter, error) {
	if err := checkBackend("report writer", backendReports != nil); err != nil {
		return nil, err
	}
	return backendReports(), nil
}

// GetSightingWriter returns a SightingWriter from the registered backend
func GetSightingWriter(ctx context.Context) (SightingWriter, error) {
	if err := checkBackend("sighting writer", backendSightings != nil); err != nil {
		return nil, err
	}
	return backendSightings(), nil
}

// GetCorpusReader returns a CorpusReader from the registered backend
func GetCorpusReader(ctx context.Context) (CorpusReader, error) {
	if err := checkBackend("corpus reader", backendCorpus != nil); err != nil {
		return nil, err
	}
	return backendCorpus(), nil
}

// GetNotificationStore returns a NotificationStore from the registered backend
func GetNotificationStore(ctx context.Context) (NotificationStore, error) {
	if err := checkBackend("notification store", backendNotifications != nil); err != nil {
		return nil, err
	}
	return backendNotifications(), nil
}

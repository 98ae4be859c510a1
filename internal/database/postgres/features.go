package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

// FeatureRepository persists photo feature vectors in a pgvector column and
// owns the in-memory HNSW index used by operator lookups.
type FeatureRepository struct {
	pool          *Pool
	index         *database.FeatureIndex
	hnswIndexPath string // Path to persist HNSW index (optional)
	mu            sync.RWMutex
}

// NewFeatureRepository creates a new PostgreSQL feature repository
func NewFeatureRepository(pool *Pool, hnswIndexPath string) *FeatureRepository {
	return &FeatureRepository{pool: pool, hnswIndexPath: hnswIndexPath}
}

// GetFeature returns the stored vector for a photo reference
func (r *FeatureRepository) GetFeature(ctx context.Context, photoRef string) (facematch.FeatureVector, bool, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, `SELECT feature FROM photo_features WHERE photo_ref = $1`, photoRef).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query feature: %w", err)
	}

	v, ok := facematch.FromFloat32(vec.Slice())
	return v, ok, nil
}

// SaveFeature stores the vector for a photo reference. Photos are immutable
// per reference, so an existing row is left untouched.
func (r *FeatureRepository) SaveFeature(ctx context.Context, photoRef string, v facematch.FeatureVector) error {
	query := `
		INSERT INTO photo_features (photo_ref, feature)
		VALUES ($1, $2::vector)
		ON CONFLICT (photo_ref) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, photoRef, pgvector.NewVector(v.Float32())); err != nil {
		return fmt.Errorf("save feature: %w", err)
	}
	return nil
}

// indexedPhotosQuery selects every report and sighting photo that has a stored
// vector. Feature rows without an owning record are not indexed.
const indexedPhotosQuery = `
	SELECT m.id AS entity_id, 'report' AS kind, m.photo_ref, f.feature
	FROM missing_persons m
	JOIN photo_features f ON f.photo_ref = m.photo_ref
	UNION ALL
	SELECT s.id, 'sighting', s.photo_ref, f.feature
	FROM sightings s
	JOIN photo_features f ON f.photo_ref = s.photo_ref
`

// indexedPhotos loads every photo the index is built from.
func (r *FeatureRepository) indexedPhotos(ctx context.Context) ([]database.IndexedPhoto, error) {
	rows, err := r.pool.Query(ctx, indexedPhotosQuery)
	if err != nil {
		return nil, fmt.Errorf("query indexed photos: %w", err)
	}
	defer rows.Close()

	var photos []database.IndexedPhoto
	for rows.Next() {
		var p database.IndexedPhoto
		var kind string
		var vec pgvector.Vector
		if err := rows.Scan(&p.EntityID, &kind, &p.PhotoRef, &vec); err != nil {
			return nil, fmt.Errorf("scan indexed photo: %w", err)
		}
		p.Kind = database.CandidateKind(kind)
		p.Feature = vec.Slice()
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexed photos: %w", err)
	}
	return photos, nil
}

// LoadFeatureIndex loads the persisted index when it matches the database,
// otherwise rebuilds it.
func (r *FeatureRepository) LoadFeatureIndex(ctx context.Context) error {
	if r.hnswIndexPath != "" {
		var dbCount int
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (`+indexedPhotosQuery+`) AS indexed`).Scan(&dbCount)
		if err != nil {
			return fmt.Errorf("failed to get feature count: %w", err)
		}

		metadata, metaErr := database.LoadFeatureIndexMetadata(r.hnswIndexPath)
		switch {
		case metaErr != nil:
			fmt.Printf("Feature index: metadata file error: %v (will rebuild)\n", metaErr)
		case metadata.Count != dbCount:
			fmt.Printf("Feature index: stale (db: count=%d, cached: count=%d) (will rebuild)\n", dbCount, metadata.Count)
		default:
			index := database.NewFeatureIndex()
			if err := index.Load(r.hnswIndexPath); err != nil {
				fmt.Printf("Feature index: failed to load: %v (will rebuild)\n", err)
				break
			}
			r.mu.Lock()
			r.index = index
			r.mu.Unlock()
			fmt.Printf("Feature index: loaded from disk (count=%d)\n", index.Count())
			return nil
		}
	}
	return r.RebuildFeatureIndex(ctx)
}

// RebuildFeatureIndex rebuilds the HNSW index from stored vectors and saves it when a path is configured
func (r *FeatureRepository) RebuildFeatureIndex(ctx context.Context) error {
	photos, err := r.indexedPhotos(ctx)
	if err != nil {
		return err
	}

	index := database.NewFeatureIndex()
	index.Build(photos)

	if r.hnswIndexPath != "" {
		if err := index.Save(r.hnswIndexPath); err != nil {
			fmt.Printf("Warning: failed to save feature index to disk: %v\n", err)
		}
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
	return nil
}

// FeatureIndex returns the current index, or nil if it was never built
func (r *FeatureRepository) FeatureIndex() *database.FeatureIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

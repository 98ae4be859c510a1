package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/facematch"
)

// FeatureRepository stores feature vectors as JSON lists in a blob column
// and builds the operator HNSW index from them.
type FeatureRepository struct {
	pool          *Pool
	index         *database.FeatureIndex
	hnswIndexPath string
	mu            sync.RWMutex
}

// NewFeatureRepository creates a new MariaDB feature repository
func NewFeatureRepository(pool *Pool, hnswIndexPath string) *FeatureRepository {
	return &FeatureRepository{pool: pool, hnswIndexPath: hnswIndexPath}
}

// GetFeature returns the stored vector for a photo reference
func (r *FeatureRepository) GetFeature(ctx context.Context, photoRef string) (facematch.FeatureVector, bool, error) {
	var data []byte
	err := r.pool.db.QueryRowContext(ctx, `SELECT feature FROM photo_features WHERE photo_ref = ?`, photoRef).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query feature: %w", err)
	}

	var raw []float32
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("unmarshal feature: %w", err)
	}
	v, ok := facematch.FromFloat32(raw)
	return v, ok, nil
}

// SaveFeature stores the vector for a photo reference, keeping any existing row
func (r *FeatureRepository) SaveFeature(ctx context.Context, photoRef string, v facematch.FeatureVector) error {
	data, err := json.Marshal(v.Float32())
	if err != nil {
		return fmt.Errorf("marshal feature: %w", err)
	}
	if _, err := r.pool.db.ExecContext(ctx, `INSERT IGNORE INTO photo_features (photo_ref, feature) VALUES (?, ?)`, photoRef, data); err != nil {
		return fmt.Errorf("save feature: %w", err)
	}
	return nil
}

// RebuildFeatureIndex rebuilds the HNSW index from stored vectors
func (r *FeatureRepository) RebuildFeatureIndex(ctx context.Context) error {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT m.id, 'report', m.photo_ref, f.feature
		FROM missing_persons m
		JOIN photo_features f ON f.photo_ref = m.photo_ref
		UNION ALL
		SELECT s.id, 'sighting', s.photo_ref, f.feature
		FROM sightings s
		JOIN photo_features f ON f.photo_ref = s.photo_ref
	`)
	if err != nil {
		return fmt.Errorf("query indexed photos: %w", err)
	}
	defer rows.Close()

	var photos []database.IndexedPhoto
	for rows.Next() {
		var p database.IndexedPhoto
		var kind string
		var data []byte
		if err := rows.Scan(&p.EntityID, &kind, &p.PhotoRef, &data); err != nil {
			return fmt.Errorf("scan indexed photo: %w", err)
		}
		if err := json.Unmarshal(data, &p.Feature); err != nil {
			return fmt.Errorf("unmarshal feature of %s: %w", p.PhotoRef, err)
		}
		p.Kind = database.CandidateKind(kind)
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate indexed photos: %w", err)
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

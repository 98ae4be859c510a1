package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/lookout/internal/constants"
)

// FeatureIndexMetadata stores metadata for validating cached indexes.
type FeatureIndexMetadata struct {
	Count     int       `json:"count"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const featureIndexMetadataVersion = 1

// IndexedPhoto is one report or sighting photo in the feature index.
type IndexedPhoto struct {
	EntityID string
	Kind     CandidateKind
	PhotoRef string
	Feature  []float32
}

func (p *IndexedPhoto) key() string {
	return string(p.Kind) + ":" + p.EntityID
}

// FeatureIndex wraps an HNSW graph over photo feature vectors. It backs the
// operator "similar" lookup; cross-reference runs never consult it because
// they must compare against every candidate.
type FeatureIndex struct {
	graph   *hnsw.Graph[string]
	entries map[string]*IndexedPhoto
	mu      sync.RWMutex
}

// NewFeatureIndex creates a new empty index.
func NewFeatureIndex() *FeatureIndex {
	return &FeatureIndex{
		entries: make(map[string]*IndexedPhoto),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given photos.
func (h *FeatureIndex) Build(photos []IndexedPhoto) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = make(map[string]*IndexedPhoto, len(photos))
	if len(photos) == 0 {
		h.graph = nil
		return
	}

	g := newGraph()
	for i := range photos {
		p := &photos[i]
		if len(p.Feature) != constants.FeatureDim {
			continue
		}
		g.Add(hnsw.MakeNode(p.key(), p.Feature))
		h.entries[p.key()] = p
	}
	h.graph = g
}

// Search finds the k nearest photos to query and returns them with their cosine similarity.
func (h *FeatureIndex) Search(query []float32, k int) ([]IndexedPhoto, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)
	photos := make([]IndexedPhoto, 0, len(neighbors))
	similarities := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		p, ok := h.entries[n.Key]
		if !ok {
			continue
		}
		photos = append(photos, *p)
		similarities = append(similarities, 1-float64(hnsw.CosineDistance(query, n.Value)))
	}
	return photos, similarities, nil
}

// Count returns the number of indexed photos.
func (h *FeatureIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Save persists the graph, its metadata (.meta) and the indexed photos (.photos).
func (h *FeatureIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".photos")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	metaData, err := json.Marshal(FeatureIndexMetadata{
		Count:     len(h.entries),
		BuildTime: time.Now(),
		Version:   featureIndexMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	photos := make([]IndexedPhoto, 0, len(h.entries))
	for _, p := range h.entries {
		photos = append(photos, *p)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(photos); err != nil {
		return fmt.Errorf("failed to encode photos: %w", err)
	}
	if err := os.WriteFile(path+".photos", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write photos file: %w", err)
	}
	return nil
}

// Load restores an index written by Save.
func (h *FeatureIndex) Load(path string) error {
	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".photos") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read photos file: %w", err)
	}
	var photos []IndexedPhoto
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&photos); err != nil {
		return fmt.Errorf("failed to decode photos: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = saved.Graph
	h.entries = make(map[string]*IndexedPhoto, len(photos))
	for i := range photos {
		h.entries[photos[i].key()] = &photos[i]
	}
	return nil
}

// LoadFeatureIndexMetadata reads the .meta file written next to a saved index.
func LoadFeatureIndexMetadata(path string) (FeatureIndexMetadata, error) {
	var metadata FeatureIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

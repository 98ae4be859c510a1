//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/lookout/internal/config"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if _, err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		_ = pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestReportAndSightingRepositories(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	reports := NewReportRepository(pool)
	sightings := NewSightingRepository(pool)
	corpus := NewCorpusRepository(pool)

	withPhoto := &database.MissingPerson{OwnerID: "owner-1", Name: "Jana Novakova", PhotoRef: "reports/a.jpg"}
	noPhoto := &database.MissingPerson{OwnerID: "owner-2", Name: "Petr Svoboda"}
	resolved := &database.MissingPerson{OwnerID: "owner-3", Name: "Eva Dvorakova", PhotoRef: "reports/c.jpg"}
	for _, p := range []*database.MissingPerson{withPhoto, noPhoto, resolved} {
		if err := reports.CreateReport(ctx, p); err != nil {
			t.Fatalf("CreateReport() error = %v", err)
		}
	}
	if err := reports.UpdateReportStatus(ctx, resolved.ID, database.ReportStatusResolved); err != nil {
		t.Fatalf("UpdateReportStatus() error = %v", err)
	}

	t.Run("GetReport", func(t *testing.T) {
		got, err := reports.GetReport(ctx, withPhoto.ID)
		if err != nil {
			t.Fatalf("GetReport() error = %v", err)
		}
		if got.Name != withPhoto.Name || got.Status != database.ReportStatusActive {
			t.Errorf("unexpected report %+v", got)
		}

		_, err = reports.GetReport(ctx, "missing")
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ReportCandidates", func(t *testing.T) {
		active, err := corpus.ReportCandidates(ctx, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(active) != 1 || active[0].ID != withPhoto.ID {
			t.Errorf("expected only the active report with photo, got %+v", active)
		}

		all, err := corpus.ReportCandidates(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 reports with photos, got %d", len(all))
		}
	})

	t.Run("SightingCandidates", func(t *testing.T) {
		s1 := &database.Sighting{ReporterID: "u1", PhotoRef: "sightings/1.jpg", Location: "Brno"}
		s2 := &database.Sighting{ReporterID: "u2", MissingPersonID: withPhoto.ID}
		for _, s := range []*database.Sighting{s1, s2} {
			if err := sightings.CreateSighting(ctx, s); err != nil {
				t.Fatalf("CreateSighting() error = %v", err)
			}
		}

		got, err := sightings.GetSighting(ctx, s2.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.MissingPersonID != withPhoto.ID {
			t.Errorf("MissingPersonID = %q, want %q", got.MissingPersonID, withPhoto.ID)
		}

		candidates, err := corpus.SightingCandidates(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(candidates) != 1 || candidates[0].ID != s1.ID || candidates[0].Location != "Brno" {
			t.Errorf("unexpected sighting candidates %+v", candidates)
		}
	})
}

func TestNotificationRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewNotificationRepository(pool)

	newMatch := func(sightingID string) *database.NotificationRecord {
		return &database.NotificationRecord{
			RecipientID:     "owner-1",
			Title:           "Possible Face Match Found",
			Message:         "match",
			Type:            constants.NotificationTypeFaceMatch,
			MissingPersonID: "mp-1",
			SightingID:      sightingID,
		}
	}

	t.Run("UniquePair", func(t *testing.T) {
		first := newMatch("s-1")
		if err := repo.Insert(ctx, first); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if first.ID == 0 {
			t.Error("expected ID to be assigned")
		}

		err := repo.Insert(ctx, newMatch("s-1"))
		if !errors.Is(err, database.ErrDuplicateNotification) {
			t.Errorf("expected ErrDuplicateNotification, got %v", err)
		}

		exists, err := repo.Exists(ctx, constants.NotificationTypeFaceMatch, "mp-1", "s-1")
		if err != nil || !exists {
			t.Errorf("Exists() = %v, %v; want true", exists, err)
		}
	})

	t.Run("ConcurrentInsertsOfSamePair", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, duplicates := 0, 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Insert(ctx, newMatch("s-race"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, database.ErrDuplicateNotification):
					duplicates++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if created != 1 || duplicates != 7 {
			t.Errorf("created=%d duplicates=%d, want 1 and 7", created, duplicates)
		}
	})

	t.Run("SightingTypeNotUnique", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			n := newMatch("s-2")
			n.Type = constants.NotificationTypeSighting
			if err := repo.Insert(ctx, n); err != nil {
				t.Fatalf("Insert() sighting notification %d error = %v", i, err)
			}
		}
	})

	t.Run("ListAndMarkRead", func(t *testing.T) {
		list, err := repo.ListByRecipient(ctx, "owner-1", 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 4 {
			t.Fatalf("expected 4 notifications, got %d", len(list))
		}
		if err := repo.MarkRead(ctx, list[0].ID); err != nil {
			t.Fatalf("MarkRead() error = %v", err)
		}
		if err := repo.MarkRead(ctx, 999999); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFeatureRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	indexPath := filepath.Join(t.TempDir(), "features.hnsw")
	repo := NewFeatureRepository(pool, indexPath)

	photo := []byte("\xff\xd8\xff\xe0 feature repository photo")
	vec, _ := facematch.Extract(photo)

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveFeature(ctx, "reports/a.jpg", vec); err != nil {
			t.Fatalf("SaveFeature() error = %v", err)
		}
		got, ok, err := repo.GetFeature(ctx, "reports/a.jpg")
		if err != nil || !ok {
			t.Fatalf("GetFeature() = %v, %v", ok, err)
		}
		if s := facematch.Score(vec, got); s < 0.999999 {
			t.Errorf("stored vector drifted, score %v", s)
		}

		_, ok, err = repo.GetFeature(ctx, "missing.jpg")
		if err != nil || ok {
			t.Errorf("GetFeature(missing) = %v, %v; want miss", ok, err)
		}
	})

	t.Run("RebuildIndex", func(t *testing.T) {
		report := &database.MissingPerson{OwnerID: "o", Name: "n", PhotoRef: "reports/a.jpg"}
		if err := NewReportRepository(pool).CreateReport(ctx, report); err != nil {
			t.Fatal(err)
		}
		if err := repo.RebuildFeatureIndex(ctx); err != nil {
			t.Fatalf("RebuildFeatureIndex() error = %v", err)
		}
		index := repo.FeatureIndex()
		if index == nil || index.Count() != 1 {
			t.Fatalf("expected 1 indexed photo")
		}

		reloaded := NewFeatureRepository(pool, indexPath)
		if err := reloaded.LoadFeatureIndex(ctx); err != nil {
			t.Fatalf("LoadFeatureIndex() error = %v", err)
		}
		if reloaded.FeatureIndex().Count() != 1 {
			t.Errorf("expected index to load from disk")
		}
	})

	t.Run("OrphanFeatureKeepsIndexFresh", func(t *testing.T) {
		before, err := database.LoadFeatureIndexMetadata(indexPath)
		if err != nil {
			t.Fatal(err)
		}

		// A vector whose photo belongs to no report or sighting is never indexed.
		if err := repo.SaveFeature(ctx, "sightings/orphan.jpg", vec); err != nil {
			t.Fatal(err)
		}

		reloaded := NewFeatureRepository(pool, indexPath)
		if err := reloaded.LoadFeatureIndex(ctx); err != nil {
			t.Fatalf("LoadFeatureIndex() error = %v", err)
		}
		after, err := database.LoadFeatureIndexMetadata(indexPath)
		if err != nil {
			t.Fatal(err)
		}
		if !after.BuildTime.Equal(before.BuildTime) {
			t.Errorf("index was rebuilt (build time %v -> %v), want loaded from disk", before.BuildTime, after.BuildTime)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_initial.sql" {
		t.Errorf("unexpected migrations %v", versions)
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no pending migrations, applied %v", applied)
	}
}

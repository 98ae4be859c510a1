package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "List the stored photos most similar to a photo file",
	Long: `Look up the nearest report and sighting photos for a local photo file.

This is an operator tool backed by an HNSW index over persisted feature
vectors. It requires PERSIST_FEATURES=true. Photos without a stored vector are
extracted first, so the first lookup on a fresh database reads every photo.

The lookup is approximate; cross-referencing never uses it.

Examples:
  lookout similar --photo ./face.jpg
  lookout similar --photo ./face.jpg --k 25`,
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().String("photo", "", "Photo file to look up (required)")
	similarCmd.Flags().Int("k", constants.DefaultSimilarK, "Number of results")
	similarCmd.Flags().Bool("rebuild", false, "Rebuild the index instead of loading it from disk")
	_ = similarCmd.MarkFlagRequired("photo")
}

// indexLoader is implemented by backends that persist the index to disk.
type indexLoader interface {
	LoadFeatureIndex(ctx context.Context) error
}

func runSimilar(cmd *cobra.Command, args []string) error {
	photoPath := mustGetString(cmd, "photo")
	k := mustGetInt(cmd, "k")
	rebuild := mustGetBool(cmd, "rebuild")
	if k <= 0 {
		return errors.New("--k must be positive")
	}

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}
	query, ok := facematch.Extract(data)
	if !ok {
		return errors.New("photo has no usable feature vector")
	}

	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.features == nil {
		return errors.New("the similar command requires PERSIST_FEATURES=true")
	}
	rebuilder := database.GetFeatureIndexRebuilder()

	ctx := context.Background()
	if err := backfillFeatures(ctx, a); err != nil {
		return err
	}

	loader, canLoad := rebuilder.(indexLoader)
	if canLoad && !rebuild {
		err = loader.LoadFeatureIndex(ctx)
	} else {
		err = rebuilder.RebuildFeatureIndex(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare feature index: %w", err)
	}

	index := rebuilder.FeatureIndex()
	if index == nil || index.Count() == 0 {
		fmt.Println("Feature index is empty")
		return nil
	}

	results, similarities, err := index.Search(query.Float32(), k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	threshold := a.engine.Policy().Threshold
	fmt.Printf("\nTop %d of %d indexed photos (match threshold %.2f)\n\n", len(results), index.Count(), threshold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tPHOTO\tSIMILARITY\tMATCH")
	for i, r := range results {
		match := ""
		if facematch.IsMatch(similarities[i], threshold) {
			match = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%s\n", r.Kind, r.EntityID, r.PhotoRef, similarities[i], match)
	}
	return w.Flush()
}

// backfillFeatures extracts and persists vectors for photos that have none yet.
func backfillFeatures(ctx context.Context, a *app) error {
	reports, err := a.corpus.ReportCandidates(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load reports: %w", err)
	}
	sightings, err := a.corpus.SightingCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sightings: %w", err)
	}
	all := append(reports, sightings...)

	var missing []database.CandidateRecord
	for _, c := range all {
		if _, ok, err := a.features.GetFeature(ctx, c.PhotoRef); err == nil && !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	bar := progressbar.NewOptions(len(missing),
		progressbar.OptionSetDescription("Extracting features"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	skipped := 0
	for _, c := range missing {
		if _, reason := a.engine.Vector(ctx, c.PhotoRef); reason != "" {
			skipped++
			a.logger.Debug("no feature vector", "kind", c.Kind, "id", c.ID, "reason", reason)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Printf("\n")
	if skipped > 0 {
		fmt.Printf("%d photos have no usable feature vector\n", skipped)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/notify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Re-run cross-referencing for every stored photo",
	Long: `Re-run photo cross-referencing for the whole corpus.

By default every active report with a photo is compared against all sightings.
With --from sighting every sighting is compared against active reports instead.
Pairs that were already notified are skipped, so a rescan only notifies about
matches that were missed before (for example after lowering MATCH_THRESHOLD).

Examples:
  lookout rescan
  lookout rescan --from sighting`,
	RunE: runRescan,
}

func init() {
	rootCmd.AddCommand(rescanCmd)
	rescanCmd.Flags().String("from", notify.DirectionReport, "Source side of each run: report or sighting")
}

// rescanTotals aggregates run summaries.
type rescanTotals struct {
	runs, failedRuns, compared, matches, notified, duplicates, failed, skipped int
}

func (t *rescanTotals) add(s *notify.RunSummary) {
	t.runs++
	t.compared += s.Compared
	t.matches += s.Matches
	t.notified += s.Notified
	t.duplicates += s.Duplicates
	t.failed += s.Failed
	for _, n := range s.Skipped {
		t.skipped += n
	}
}

func runRescan(cmd *cobra.Command, args []string) error {
	from := mustGetString(cmd, "from")
	if from != notify.DirectionReport && from != notify.DirectionSighting {
		return fmt.Errorf("--from must be %q or %q", notify.DirectionReport, notify.DirectionSighting)
	}

	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var sources []database.CandidateRecord
	if from == notify.DirectionReport {
		sources, err = a.corpus.ReportCandidates(ctx, true)
	} else {
		sources, err = a.corpus.SightingCandidates(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load %ss: %w", from, err)
	}
	if len(sources) == 0 {
		fmt.Printf("No %ss with photos to rescan\n", from)
		return nil
	}

	fmt.Printf("Rescanning %d %ss\n\n", len(sources), from)
	bar := progressbar.NewOptions(len(sources),
		progressbar.OptionSetDescription("Cross-referencing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(from+"s"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var totals rescanTotals
	for _, src := range sources {
		summary, err := rescanOne(ctx, a, from, src.ID)
		if err != nil {
			totals.failedRuns++
			a.logger.Error("rescan run failed", "direction", from, "source_id", src.ID, "error", err)
		} else {
			totals.add(summary)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\n\nRescan complete\n")
	fmt.Printf("  Runs:          %d (%d failed)\n", totals.runs, totals.failedRuns)
	fmt.Printf("  Compared:      %d\n", totals.compared)
	fmt.Printf("  Skipped:       %d\n", totals.skipped)
	fmt.Printf("  Matches:       %d\n", totals.matches)
	fmt.Printf("  Notified:      %d\n", totals.notified)
	fmt.Printf("  Already known: %d\n", totals.duplicates)
	if totals.failed > 0 {
		fmt.Printf("  Failed:        %d\n", totals.failed)
	}
	return nil
}

func rescanOne(ctx context.Context, a *app, from, id string) (*notify.RunSummary, error) {
	if from == notify.DirectionReport {
		report, err := a.reports.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		return a.pipeline.OnReportPhoto(ctx, report, nil)
	}
	sighting, err := a.sightings.GetSighting(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.pipeline.OnSightingPhoto(ctx, sighting, nil)
}

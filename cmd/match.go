package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/kozaktomas/lookout/internal/notify"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run one cross-reference for a report or a sighting",
	Long: `Compare the photo of one report against all sightings, or the photo of
one sighting against all active reports, and notify about new matches.

Examples:
  lookout match --report 3f1c...
  lookout match --sighting 9a02... --json`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().String("report", "", "Report ID to cross-reference")
	matchCmd.Flags().String("sighting", "", "Sighting ID to cross-reference")
	matchCmd.Flags().Bool("json", false, "Output the run summary as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	reportID := mustGetString(cmd, "report")
	sightingID := mustGetString(cmd, "sighting")
	jsonOutput := mustGetBool(cmd, "json")

	if (reportID == "") == (sightingID == "") {
		return errors.New("exactly one of --report or --sighting is required")
	}

	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var summary *notify.RunSummary
	if reportID != "" {
		report, err := a.reports.GetReport(ctx, reportID)
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}
		summary, err = a.pipeline.OnReportPhoto(ctx, report, nil)
		if err != nil {
			return err
		}
	} else {
		sighting, err := a.sightings.GetSighting(ctx, sightingID)
		if err != nil {
			return fmt.Errorf("failed to load sighting: %w", err)
		}
		summary, err = a.pipeline.OnSightingPhoto(ctx, sighting, nil)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(summary)
	return nil
}

func printSummary(s *notify.RunSummary) {
	fmt.Printf("\nRun %s (%s %s)\n", s.RunID, s.Direction, s.SourceID)
	fmt.Printf("  Candidates: %d\n", s.Candidates)
	fmt.Printf("  Compared:   %d\n", s.Compared)
	fmt.Printf("  Matches:    %d\n", s.Matches)
	fmt.Printf("  Notified:   %d\n", s.Notified)
	fmt.Printf("  Duplicates: %d\n", s.Duplicates)
	if s.Failed > 0 {
		fmt.Printf("  Failed:     %d\n", s.Failed)
	}
	if len(s.Skipped) > 0 {
		reasons := make([]facematch.SkipReason, 0, len(s.Skipped))
		for r := range s.Skipped {
			reasons = append(reasons, r)
		}
		slices.Sort(reasons)
		fmt.Println("  Skipped:")
		for _, r := range reasons {
			fmt.Printf("    %-15s %d\n", r, s.Skipped[r])
		}
	}
	if s.TimedOut {
		fmt.Println("  Run timed out; results are partial")
	}
	fmt.Printf("  Duration:   %s\n", s.Duration)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lookout",
	Short: "Cross-reference missing-person reports with sightings by photo",
	Long: `Lookout stores missing-person reports and sightings, compares every new
photo against the opposite corpus and notifies the report owner once per
matching (report, sighting) pair.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// thresholdFlag overrides MATCH_THRESHOLD when --threshold is set.
var thresholdFlag float64

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Float64Var(&thresholdFlag, "threshold", 0, "Match threshold in [0,1] (overrides MATCH_THRESHOLD)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

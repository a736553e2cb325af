package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
	"github.com/felixgeelhaar/kata/internal/telemetry"
	"github.com/felixgeelhaar/kata/internal/timer"
)

var statsRecent int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local practice statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlite.Open(cfg.Telemetry.SQLitePath)
		if err != nil {
			return fmt.Errorf("open statistics: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate statistics: %w", err)
		}

		sum, err := telemetry.NewSQLiteSink(sqlite.NewRecordStore(db)).Summary(cmd.Context(), statsRecent)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 5, "number of recent questions to list")
	rootCmd.AddCommand(statsCmd)
}

func printSummary(out io.Writer, sum *telemetry.Summary) {
	fmt.Fprintln(out, "Practice Statistics")
	fmt.Fprintln(out, "===================")
	if sum.Total == 0 {
		fmt.Fprintln(out, "No questions finished yet. Start practicing!")
		return
	}

	fmt.Fprintf(out, "Questions finished: %d\n", sum.Total)
	fmt.Fprintf(out, "Time practiced:     %s\n", timer.Format(sum.TotalSeconds))
	fmt.Fprintf(out, "Hints used:         %d\n", sum.HintsUsed)
	fmt.Fprintf(out, "Solutions viewed:   %d (%.0f%%)\n",
		sum.SolutionsSeen, 100*float64(sum.SolutionsSeen)/float64(sum.Total))

	fmt.Fprintln(out, "\nBy Language")
	fmt.Fprintln(out, "-----------")
	for _, l := range sum.ByLanguage {
		bar := renderProgressBar(float64(l.Count)/float64(sum.Total), 20)
		fmt.Fprintf(out, "%-12s %s %3d  avg %s  hints %d\n",
			l.Language, bar, l.Count, timer.Format(int(l.AverageSeconds+0.5)), l.TotalHints)
	}

	if len(sum.RecentRecords) > 0 {
		fmt.Fprintln(out, "\nRecent")
		fmt.Fprintln(out, "------")
		for _, r := range sum.RecentRecords {
			solution := ""
			if r.SolutionViewed {
				solution = "  (solution viewed)"
			}
			fmt.Fprintf(out, "%s  %-10s %s  %s%s\n",
				r.Date.Local().Format("2006-01-02"), r.Language, r.TimeTaken, truncate(r.Question, 48), solution)
		}
	}
}

// truncate flattens s to one line of at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

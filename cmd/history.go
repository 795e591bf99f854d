package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caravel-cd/caravel/internal/config"
	"github.com/caravel-cd/caravel/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUILD\tIMAGE\tOUTCOME\tSTAGE\tSTARTED\tDURATION")
	for _, rec := range records {
		duration := "-"
		if !rec.FinishedAt.IsZero() {
			duration = rec.Duration().String()
		}
		stage := rec.Stage
		if stage == "" {
			stage = "-"
		}
		image := rec.Image
		if image == "" {
			image = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, image, rec.Outcome, stage,
			rec.StartedAt.Format("2006-01-02 15:04:05"), duration)
	}
	return w.Flush()
}

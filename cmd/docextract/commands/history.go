package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/docextract/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded processing runs",
	Long: `History prints the most recent runs from the processing ledger,
newest first. The ledger is written when process runs with --history.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("history_db")
	if path == "" {
		err := errors.New("no ledger configured: pass --history or set DOCEXTRACT_HISTORY_DB")
		logError("%v", err)
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(cmd.Context(), path)
	if err != nil {
		logError("open history: %v", err)
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), limit)
	if err != nil {
		logError("list history: %v", err)
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tFILE\tSTATUS\tPAGES\tTABLES\tVALUES\tFILES")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			e.ID, humanize.Time(e.ProcessedAt), e.Filename, status,
			e.PageCount, e.TableCount, e.ValueCount, len(e.OutputFiles))
	}
	return tw.Flush()
}

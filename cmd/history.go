package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/textbook-qa/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent questions and ingestion runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of records to show")
	historyCmd.Flags().Bool("ingest", false, "list ingestion runs instead of questions")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("limit")
	ingest, _ := cmd.Flags().GetBool("ingest")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("history is disabled (history_db is empty)")
	}
	defer database.Close()

	var out any
	if ingest {
		runs, err := store.ListIngestRuns(ctx, limit)
		if err != nil {
			return err
		}
		out = runs
		if !jsonOutput {
			printIngestRuns(runs)
			return nil
		}
	} else {
		records, err := store.ListQueries(ctx, limit, 0)
		if err != nil {
			return err
		}
		out = records
		if !jsonOutput {
			printQueries(records)
			return nil
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printQueries(records []history.QueryRecord) {
	if len(records) == 0 {
		fmt.Println("No questions recorded yet.")
		return
	}
	for _, r := range records {
		status := "ok"
		if r.ErrorKind != "" {
			status = r.ErrorKind
		}
		fmt.Printf("%s  [%s, %dms]  %s\n", r.AskedAt.Local().Format(time.DateTime), status, r.DurationMS, r.Question)
		if r.Answer != "" {
			fmt.Printf("    %s\n", truncate(r.Answer, 120))
		}
	}
}

func printIngestRuns(runs []history.IngestRun) {
	if len(runs) == 0 {
		fmt.Println("No ingestion runs recorded yet.")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  processed=%d skipped=%d chunks=%d (%dms)\n",
			r.StartedAt.Local().Format(time.DateTime), r.Processed, r.Skipped, r.Chunks, r.DurationMS)
	}
}

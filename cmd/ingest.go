package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/textbook-qa/internal/chunker"
	"github.com/ziadkadry99/textbook-qa/internal/indexer"
	"github.com/ziadkadry99/textbook-qa/internal/progress"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths or globs...]",
	Short: "Load, chunk and embed documents into the vector index",
	Long: `Reads the given documents (or the documents listed in the config file),
splits them into overlapping chunks, embeds them and appends them to the
vector index. Documents that cannot be read are skipped and reported.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Int("concurrency", 0, "documents loaded in parallel (overrides config)")
	ingestCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.IngestConcurrency = concurrency
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Documents
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no documents given; pass paths or set `documents` in %s", cfgFile)
	}

	gateway, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return err
	}

	c, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	index, err := vectordb.New()
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}

	pipeline := indexer.NewPipeline(gateway, index, c, cfg)
	pipeline.SetLogger(logger)

	database, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		pipeline.SetRecorder(store)
	}

	var reporter progress.Reporter
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		reporter = progress.NewReporter()
		pipeline.SetProgressFunc(progress.Func(reporter))
	}

	summary, err := pipeline.Run(ctx, patterns)
	if reporter != nil {
		reporter.Finish()
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printIngestSummary(summary, cfg.VectorDBPath, index.Count())

	if summary.Processed == 0 {
		return fmt.Errorf("no documents were ingested")
	}
	return nil
}

func printIngestSummary(s *indexer.Summary, dir string, total int) {
	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents processed: %d\n", s.Processed)
	fmt.Printf("  Documents skipped:   %d\n", s.Skipped)
	fmt.Printf("  Chunks added:        %d\n", s.Chunks)
	fmt.Printf("  Index entries:       %d\n", total)
	fmt.Printf("  Duration:            %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("  Index:               %s\n", dir)

	if len(s.Failures) > 0 {
		paths := make([]string, 0, len(s.Failures))
		for p := range s.Failures {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		fmt.Fprintf(os.Stderr, "\nSkipped (%d):\n", len(paths))
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", p, s.Failures[p])
		}
	}
}

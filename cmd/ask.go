package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/textbook-qa/internal/qa"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieves the most similar chunks, keeps only their relevant parts and
asks the model to answer strictly from them. The pages the answer was
drawn from are listed after it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("json", false, "output the answer as JSON")
	askCmd.Flags().Bool("no-history", false, "do not record the question in the history database")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := strings.Join(args, " ")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, !noHistory)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.service.Ask(ctx, question)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	printAnswer(answer)
	return nil
}

func printAnswer(a *qa.Answer) {
	fmt.Println(a.Answer)
	if len(a.RetrievedDocuments) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Sources:")
	for i, d := range a.RetrievedDocuments {
		fmt.Printf("  %d. %s, page %s\n", i+1, d.Link, d.Page)
		fmt.Printf("     %s\n", truncate(strings.ReplaceAll(d.Snippet, "\n", " "), 120))
	}
}

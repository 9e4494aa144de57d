package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/manifoldco/promptui"
)

// documentPatterns are offered as the default document list when matching
// files exist in the current directory.
var documentPatterns = []string{"**/*.pdf", "**/*.txt", "**/*.md"}

// detectDocuments returns the patterns that match at least one file under
// the current directory.
func detectDocuments() []string {
	var found []string
	for _, pattern := range documentPatterns {
		matches, _ := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if len(matches) > 0 {
			found = append(found, pattern)
		}
	}
	return found
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to bookqa! Let's configure your textbook index.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select completion provider",
		Items: []string{string(ProviderGroq), string(ProviderOpenAI), string(ProviderOllama)},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)
	preset := GetPreset(provider)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Completion model",
		Default: preset.Model,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Documents.
	docsPrompt := promptui.Prompt{
		Label:   "Documents to index (comma-separated paths or globs)",
		Default: strings.Join(detectDocuments(), ","),
	}
	docsStr, err := docsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}

	// 4. Index location.
	dbPrompt := promptui.Prompt{
		Label:   "Vector index directory",
		Default: "vector_db",
	}
	vectorDB, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vector index directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = model
	cfg.EmbeddingProvider = preset.EmbeddingProvider
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.EmbeddingDimensions = preset.Dimensions
	cfg.Documents = splitAndTrim(docsStr)
	cfg.VectorDBPath = vectorDB

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, p := range []ProviderType{cfg.Provider, cfg.EmbeddingProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment or .env before running bookqa ingest.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}

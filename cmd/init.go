package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/textbook-qa/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize bookqa configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose providers and documents, and writes a .bookqa.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

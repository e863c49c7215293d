package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdf-quiz-rag/internal/config"
	"pdf-quiz-rag/internal/logger"
)

var (
	configPath string
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "quizrag",
	Short: "Generate quiz questions from PDF documents",
	Long: `quizrag turns a PDF into study questions. Level 1 questions are written
from the whole document; level 2 questions are grounded on the pages most
relevant to each topic, retrieved from a vector index. Questions about the
document can be answered the same way.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("quizrag %s\n", versionString()))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON); defaults to ./config.yaml or ./config.json")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of formatted output")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

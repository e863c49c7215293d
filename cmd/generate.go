package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdf-quiz-rag/internal/models"
)

var level int

var generateCmd = &cobra.Command{
	Use:   "generate <pdf>",
	Short: "Generate questions from a PDF",
	Long: `Generate questions for every topic of a PDF.

Level 1 writes questions from the full document text. Level 2 retrieves the
pages most similar to each topic and writes questions grounded on them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if level != 1 && level != 2 {
			return fmt.Errorf("--level must be 1 or 2, got %d", level)
		}

		src, err := readPDF(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		key, err := a.service.Ingest(cmd.Context(), src)
		if err != nil {
			return err
		}

		var env *models.Envelope
		if level == 1 {
			env, err = a.service.GenerateDirect(cmd.Context(), key)
		} else {
			env, err = a.service.GenerateGrounded(cmd.Context(), key)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), env)
		}
		renderEnvelope(cmd.OutOrStdout(), env)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&level, "level", "l", 1, "Question level: 1 (whole document) or 2 (retrieval grounded)")
	rootCmd.AddCommand(generateCmd)
}

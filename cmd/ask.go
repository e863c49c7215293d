package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"pdf-quiz-rag/internal/models"
)

var askCmd = &cobra.Command{
	Use:   "ask <pdf> <question>",
	Short: "Answer a question about a PDF",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args[1:], " "))

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
		answer, err := a.service.Answer(cmd.Context(), key, question)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), models.NewChatResponse(answer))
		}
		renderAnswer(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

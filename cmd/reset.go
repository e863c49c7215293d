package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdf-quiz-rag/internal/models"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every indexed document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.service.Reset(cmd.Context()); err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), &models.StatusResponse{Status: "Data reset successfully"})
		}
		fmt.Fprintln(cmd.OutOrStdout(), correctStyle.Render("Index reset"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

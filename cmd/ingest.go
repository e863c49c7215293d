package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdf-quiz-rag/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>",
	Short: "Index a PDF and print its collection name",
	Long: `Index a PDF, one vector per page, and print the collection name it is
stored under. With a persistent index backend the vectors are reused by later
runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, &models.IngestResponse{CollectionName: key, Status: "success"})
		}
		fmt.Fprintf(out, "%s %s\n", correctStyle.Render("Ingested"), titleStyle.Render(key))
		fmt.Fprintln(out, dimStyle.Render("index: "+a.backend))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

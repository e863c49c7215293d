package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pdf-quiz-rag/internal/models"
)

var (
	// titleStyle for the document title
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// dimStyle for metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// topicStyle for topic headers
	topicStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	correctStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	// boxStyle frames the header and answers
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderEnvelope(w io.Writer, env *models.Envelope) {
	m := env.Metadata
	header := titleStyle.Render(m.Title) + "\n" +
		dimStyle.Render(fmt.Sprintf("%d questions · %s · model %s", m.TotalQuestionCount, m.GenerationMode, m.ModelID))
	fmt.Fprintln(w, boxStyle.Render(header))

	topic := ""
	for i, q := range env.Questions {
		if q.Topic != topic {
			topic = q.Topic
			fmt.Fprintln(w)
			fmt.Fprintln(w, topicStyle.Render(topic))
		}
		fmt.Fprintf(w, "\n%d. %s\n", i+1, q.PromptText)
		for j, opt := range q.Options {
			line := fmt.Sprintf("   %c) %s", 'a'+rune(j%26), opt)
			if opt == q.CorrectOption {
				line = correctStyle.Render(line + " ✓")
			}
			fmt.Fprintln(w, line)
		}
		var notes []string
		if q.PageNumber > 0 {
			notes = append(notes, fmt.Sprintf("page %d", q.PageNumber))
		}
		if q.Explanation != "" {
			notes = append(notes, q.Explanation)
		}
		if len(notes) > 0 {
			fmt.Fprintln(w, dimStyle.Render("   "+strings.Join(notes, " · ")))
		}
	}
}

func renderAnswer(w io.Writer, a *models.ChatAnswer) {
	fmt.Fprintln(w, titleStyle.Render(a.QuestionText))
	fmt.Fprintln(w, boxStyle.Render(a.AnswerText))
	for _, s := range a.SupportingSections {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("page %d (confidence %.2f)", s.Metadata.SectionID, s.Confidence)))
	}
}

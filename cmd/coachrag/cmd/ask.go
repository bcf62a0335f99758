package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/smallnest/coachrag/rag"
	"github.com/spf13/cobra"
)

var (
	askK     int
	askDocID string
	askJSON  bool
)

var (
	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the stored documents",
	Long: `Embed the question, retrieve the closest chunks and generate an answer
grounded on them. Sources are listed most relevant first.

Examples:
  coachrag ask "What is the GROW model?"
  coachrag ask "Which goals were agreed?" --doc-id session-12 --k 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askK, "k", "k", rag.DefaultK, "Number of chunks to retrieve")
	askCmd.Flags().StringVar(&askDocID, "doc-id", "", "Restrict retrieval to one document")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askK < 1 {
		return fmt.Errorf("%w: --k must be at least 1, got %d", rag.ErrInvalidArgument, askK)
	}

	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.engine.Ask(ctx, rag.Query{
		Question: strings.Join(args, " "),
		K:        askK,
		DocID:    askDocID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		data, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, renderAnswer(answer))
	return nil
}

func renderAnswer(answer *rag.Answer) string {
	var b strings.Builder
	b.WriteString(answerStyle.Render(answer.Text))
	b.WriteString("\n")
	if len(answer.Sources) == 0 {
		b.WriteString(sourceStyle.Render("no sources"))
		return b.String()
	}
	b.WriteString(headingStyle.Render("Sources"))
	for i, s := range answer.Sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(fmt.Sprintf("%d. %s (doc_id=%s, chunk %d)",
			i+1, rag.SourceLabel(s.Metadata, s.DocID), s.DocID, s.ID)))
	}
	return b.String()
}

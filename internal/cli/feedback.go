package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Send and read feedback",
}

var feedbackSendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send feedback to the portal team",
	Long: `Send feedback to the portal team.

Examples:
  portal feedback send "The LINQ lesson needs more examples"
  portal feedback send "Typo in step 3" --page lesson-4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeedbackSend,
}

var feedbackListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List submitted feedback",
	RunE:    runFeedbackList,
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show [feedback-id]",
	Short: "Show one feedback entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedbackShow,
}

var feedbackPage string

func init() {
	feedbackCmd.AddCommand(feedbackSendCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackShowCmd)

	feedbackSendCmd.Flags().StringVarP(&feedbackPage, "page", "p", "", "Page the feedback refers to")
}

func runFeedbackSend(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fb, err := a.API.SubmitFeedback(cmd.Context(), strings.Join(args, " "), feedbackPage)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Thanks! Feedback %s received\n", fb.ID)
	return nil
}

func runFeedbackList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	items, err := a.API.ListFeedback(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("No feedback yet.")
		return nil
	}

	for _, fb := range items {
		from := fb.UserEmail
		if from == "" {
			from = "anonymous"
		}
		fmt.Printf("  %s  %s  %-20s %s\n", fb.ID, fb.CreatedAt.Local().Format("Jan 02 15:04"), from, truncate(fb.Message, 50))
	}
	return nil
}

func runFeedbackShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fb, err := a.API.GetFeedback(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("💬 %s\n", fb.ID)
	fmt.Printf("   Created: %s\n", fb.CreatedAt.Local().Format("Jan 2, 2006 15:04"))
	if fb.UserEmail != "" {
		fmt.Printf("   From:    %s\n", fb.UserEmail)
	}
	if fb.PageContext != "" {
		fmt.Printf("   Page:    %s\n", fb.PageContext)
	}
	fmt.Println()
	fmt.Println(fb.Message)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

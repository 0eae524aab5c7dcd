package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/store"
	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Track your learning progress",
	Long: `Show and update your learning progress.

Examples:
  portal progress
  portal progress lesson 3
  portal progress topic linq
  portal progress time 25`,
	RunE: runProgressStatus,
}

var progressLessonCmd = &cobra.Command{
	Use:   "lesson [lesson-id]",
	Short: "Mark a lesson complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressLesson,
}

var progressTopicCmd = &cobra.Command{
	Use:   "topic [topic-id]",
	Short: "Mark a topic complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressTopic,
}

var progressTimeCmd = &cobra.Command{
	Use:   "time [minutes]",
	Short: "Add study time in minutes",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressTime,
}

var progressUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts with progress stored on this machine",
	RunE:  runProgressUsers,
}

func init() {
	progressCmd.AddCommand(progressLessonCmd)
	progressCmd.AddCommand(progressTopicCmd)
	progressCmd.AddCommand(progressTimeCmd)
	progressCmd.AddCommand(progressUsersCmd)
}

func runProgressStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := requireSession(a); err != nil {
		return err
	}

	snap := a.Progress.Snapshot()
	pct := a.Progress.CompletionPercentage()
	fmt.Printf("📊 %s\n", a.Progress.Email())
	fmt.Printf("   %s %d%%\n\n", bar(pct, 24), pct)

	for _, topic := range model.Curriculum {
		mark := "○"
		if a.Progress.IsTopicComplete(topic.ID) {
			mark = "✓"
		}
		fmt.Printf("  %s %s\n", mark, topic.Title)
	}

	fmt.Println()
	fmt.Printf("   Lessons completed: %d\n", len(snap.CompletedLessons))
	fmt.Printf("   Time spent:        %s\n", formatMinutes(snap.TotalTimeSpent))
	if snap.LastActivity != nil {
		fmt.Printf("   Last activity:     %s\n", snap.LastActivity.Local().Format("Jan 2, 2006 15:04"))
	}
	return nil
}

func runProgressLesson(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := requireSession(a); err != nil {
		return err
	}
	if err := a.Progress.MarkLessonComplete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Lesson %s marked complete\n", args[0])
	return nil
}

func runProgressTopic(cmd *cobra.Command, args []string) error {
	topic, ok := model.FindTopic(args[0])
	if !ok {
		ids := make([]string, 0, len(model.Curriculum))
		for _, t := range model.Curriculum {
			ids = append(ids, t.ID)
		}
		return fmt.Errorf("unknown topic %q (one of: %s)", args[0], strings.Join(ids, ", "))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := requireSession(a); err != nil {
		return err
	}
	if err := a.Progress.MarkTopicComplete(cmd.Context(), topic.ID); err != nil {
		return err
	}
	fmt.Printf("✓ %s marked complete (%d%%)\n", topic.Title, a.Progress.CompletionPercentage())
	return nil
}

func runProgressTime(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid minutes %q", args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := requireSession(a); err != nil {
		return err
	}
	if err := a.Progress.AddTimeSpent(cmd.Context(), minutes); err != nil {
		return err
	}
	fmt.Printf("⏱  Added %s (total %s)\n", formatMinutes(minutes), formatMinutes(a.Progress.Snapshot().TotalTimeSpent))
	return nil
}

func runProgressUsers(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	keys, err := a.Store.Keys(cmd.Context(), store.ProgressPrefix())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No progress stored on this machine.")
		return nil
	}

	for _, key := range keys {
		email := strings.TrimPrefix(key, store.ProgressPrefix())
		p, err := a.Progress.Stored(cmd.Context(), email)
		if err != nil {
			fmt.Printf("  %-30s (unreadable)\n", email)
			continue
		}
		active := ""
		if email == a.Progress.Email() {
			active = " ←"
		}
		fmt.Printf("  %-30s %d topics, %d lessons, %s%s\n", email,
			len(p.CompletedTopics), len(p.CompletedLessons), formatMinutes(p.TotalTimeSpent), active)
	}
	return nil
}

func bar(pct, width int) string {
	filled := pct * width / 100
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatMinutes(m int) string {
	return (time.Duration(m) * time.Minute).String()
}

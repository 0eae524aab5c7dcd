package cli

import (
	"errors"
	"fmt"

	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/model"
	"github.com/spf13/cobra"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Browse lessons",
	Long: `Browse the C# and ASP.NET Core lessons.

Examples:
  portal lessons list
  portal lessons list --track aspnetcore
  portal lessons show 3`,
}

var lessonsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List lessons of a track",
	RunE:    runLessonsList,
}

var lessonsShowCmd = &cobra.Command{
	Use:   "show [lesson-id]",
	Short: "Show a lesson",
	Args:  cobra.ExactArgs(1),
	RunE:  runLessonsShow,
}

var (
	lessonsTrack    string
	lessonsComplete bool
)

func init() {
	lessonsCmd.AddCommand(lessonsListCmd)
	lessonsCmd.AddCommand(lessonsShowCmd)

	lessonsListCmd.Flags().StringVarP(&lessonsTrack, "track", "t", "", "Track to list (empty for core, or aspnetcore)")
	lessonsShowCmd.Flags().BoolVarP(&lessonsComplete, "complete", "c", false, "Mark the lesson complete after showing it")
}

func runLessonsList(cmd *cobra.Command, args []string) error {
	track := model.Track(lessonsTrack)
	if track != model.TrackCore && track != model.TrackASPNETCore {
		return fmt.Errorf("unknown track %q", lessonsTrack)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	lessons, err := a.API.ListLessons(cmd.Context(), track)
	if err != nil {
		return fmt.Errorf("failed to list lessons: %w", err)
	}
	if len(lessons) == 0 {
		fmt.Println("No lessons found.")
		return nil
	}

	for _, l := range lessons {
		mark := "○"
		if a.Progress.IsLessonComplete(l.ID) {
			mark = "✓"
		}
		fmt.Printf("  %s %-4s %s\n", mark, l.ID, l.Title)
		if l.Description != "" {
			fmt.Printf("         %s\n", l.Description)
		}
	}
	return nil
}

func runLessonsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	lesson, err := a.API.GetLessonAnyTrack(cmd.Context(), args[0])
	if errors.Is(err, api.ErrLessonNotFound) {
		fmt.Printf("Lesson %s not found\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("📖 %s\n", lesson.Title)
	if lesson.Description != "" {
		fmt.Printf("   %s\n", lesson.Description)
	}
	fmt.Println()
	fmt.Println(lesson.Content)

	if lessonsComplete {
		if err := a.Progress.MarkLessonComplete(cmd.Context(), lesson.ID); err != nil {
			return err
		}
		fmt.Printf("\n✓ Lesson %s marked complete\n", lesson.ID)
	}
	return nil
}

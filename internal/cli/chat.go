package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursepilot/coursepilot/pkg/orchestrator"
)

var chatCourseID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session against a course's agents",
	Long: `Chat reads student messages from stdin and runs each one through the
orchestration engine for the given course. Intended for trying out a course
configuration before wiring the real conversation surface on top.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatCourseID, "course", "", "course id to chat against (required)")
	_ = chatCmd.MarkFlagRequired("course")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if err := a.indexer.Sync(ctx); err != nil {
		return fmt.Errorf("materials sync failed: %w", err)
	}

	if _, err := a.courses.Course(ctx, chatCourseID); err != nil {
		return err
	}

	fmt.Printf("Chatting with course %s. Empty line or Ctrl-D exits.\n", chatCourseID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			break
		}

		result, err := a.engine.Respond(context.Background(), orchestrator.TurnRequest{
			CourseID: chatCourseID,
			Message:  message,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n[agents: %s | backend: %s | %s]\n",
			result.Content,
			strings.Join(result.ContributingAgents, ", "),
			result.BackendUsed,
			result.Duration.Round(time.Millisecond),
		)
	}

	return scanner.Err()
}

package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/journal-go/internal/models"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation transcript",
	Long: `Show a conversation's metadata and full transcript.

Examples:
  journal show 4f2a91c0-...`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	conv, err := st.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}

	fmt.Printf("%s\n", conv.Title)
	fmt.Printf("Started:  %s\n", conv.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Updated:  %s\n", conv.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Messages: %d\n", conv.MessageCount)
	if conv.CurrentMood != nil && *conv.CurrentMood != "" {
		fmt.Printf("Mood:     %s\n", *conv.CurrentMood)
	}
	if len(conv.Goals) > 0 {
		fmt.Println("Goals:")
		for _, g := range conv.Goals {
			fmt.Printf("  - %s\n", g)
		}
	}
	fmt.Println()

	msgs, err := st.GetMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	for _, m := range msgs {
		prefix := "You"
		if m.Role == models.RoleAssistant {
			prefix = "Journal"
		}
		fmt.Printf("[%s] %s:\n%s\n\n", m.Timestamp.Format("15:04"), prefix, m.Content)
	}

	return nil
}

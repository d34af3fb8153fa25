package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest activity first",
	Long: `List stored conversations ordered by most recent activity.

Examples:
  journal list
  journal list -n 10
  journal list -n 10 --offset 10`,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "max results")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "skip this many results")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	convs, err := st.ListConversations(ctx, listLimit, listOffset)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations yet. Start one with 'journal chat'.")
		return nil
	}

	fmt.Printf("Conversations (%d):\n\n", len(convs))
	for _, c := range convs {
		fmt.Printf("- %s  (%d messages, %s)\n", c.Title, c.MessageCount, c.UpdatedAt.Format("2006-01-02 15:04"))
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
			if c.CurrentMood != nil && *c.CurrentMood != "" {
				fmt.Printf("  Mood: %s\n", *c.CurrentMood)
			}
			if len(c.Goals) > 0 {
				fmt.Printf("  Goals: %v\n", c.Goals)
			}
		}
	}

	return nil
}

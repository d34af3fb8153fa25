package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search conversations by title and content",
	Long: `Search conversation titles and message content. Matching is
case-insensitive substring search.

Examples:
  journal search "job interview"
  journal search garden -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	convs, err := st.SearchConversations(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No matching conversations.")
		return nil
	}

	fmt.Printf("Matches (%d):\n\n", len(convs))
	for _, c := range convs {
		fmt.Printf("- %s  (%d messages, %s)\n", c.Title, c.MessageCount, c.UpdatedAt.Format("2006-01-02 15:04"))
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
		}
	}

	return nil
}

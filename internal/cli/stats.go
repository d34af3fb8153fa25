package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Println("Journal statistics:")
	fmt.Printf("  Conversations: %d\n", stats.Conversations)
	fmt.Printf("  Messages:      %d\n", stats.Messages)
	if stats.FirstConversationAt != nil {
		fmt.Printf("  Journaling since: %s\n", stats.FirstConversationAt.Format("2006-01-02"))
	}
	fmt.Printf("  Storage: %.1f KiB (%s)\n", float64(stats.StorageBytes)/1024, st.Path())

	return nil
}

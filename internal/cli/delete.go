package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its messages",
	Long: `Delete a conversation and all its messages.

Requires confirmation unless --force is used.

Examples:
  journal delete 4f2a91c0-...
  journal delete 4f2a91c0-... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := context.Background()

	conv, err := st.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}

	// Confirm deletion
	if !deleteForce {
		fmt.Printf("About to delete: %s (%d messages)\n", conv.Title, conv.MessageCount)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	deleted, err := st.DeleteConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if !deleted {
		return fmt.Errorf("conversation not found or already deleted")
	}

	fmt.Printf("Deleted: %s\n", conv.Title)
	return nil
}

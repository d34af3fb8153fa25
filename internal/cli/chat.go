package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/models"
	"github.com/raphaelgruber/journal-go/internal/prompt"
	"github.com/raphaelgruber/journal-go/internal/session"
	"github.com/raphaelgruber/journal-go/internal/summary"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	chatResume string
	chatName   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume a journaling conversation",
	Long: `Start an interactive journaling conversation, or resume an earlier one.

Inside the chat:
  /mood <mood>   record how you're feeling
  /goal <goal>   add a goal to this conversation
  /quit          end the session (Ctrl+D works too)

Examples:
  journal chat
  journal chat --name Sam
  journal chat --resume 4f2a91c0-...`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "conversation ID to resume")
	chatCmd.Flags().StringVar(&chatName, "name", "", "your name, woven into the companion's context")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	prompts, err := prompt.NewManager(cfg.TemplatesDir)
	if err != nil {
		return fmt.Errorf("load prompt templates: %w", err)
	}

	m, err := getModel()
	if err != nil {
		return err
	}

	// Background title generation shares the model and store.
	trigger := summary.NewTrigger(summary.New(m, logger), st, logger)
	defer trigger.Close()

	sessCfg := session.Config{
		ModelTimeout:         cfg.ModelTimeout,
		SummaryAfterMessages: cfg.SummaryAfterMessages,
	}

	var sess *session.Session
	if chatResume != "" {
		sess, err = session.Resume(ctx, st, m, prompts, trigger, logger, sessCfg, chatResume)
		if err != nil {
			return fmt.Errorf("resume conversation: %w", err)
		}
		fmt.Printf("Resuming conversation %s (%d earlier messages).\n\n", chatResume, len(sess.History()))
		printHistory(sess)
	} else {
		sess = session.New(st, m, prompts, trigger, logger, sessCfg, chatName)
		fmt.Println("New conversation. Write when you're ready; /quit to finish.")
		fmt.Println()
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if done, handled := handleCommand(ctx, sess, line); handled {
			if done {
				break
			}
			continue
		}

		reply, err := sendWithSpinner(ctx, sess, line, interactive)
		if err != nil {
			if errors.Is(err, llm.ErrUnavailable) {
				fmt.Println("The model is unreachable right now; your message was saved. Try again in a moment.")
				continue
			}
			if errors.Is(err, context.Canceled) {
				fmt.Println("Stopped waiting.")
				break
			}
			return err
		}

		fmt.Printf("\n%s\n\n", reply)
	}

	if err := sess.PersistContext(ctx); err != nil {
		logger.Warn("failed to persist session context", "error", err)
	}
	if id := sess.ConversationID(); id != "" {
		fmt.Printf("Saved. Resume anytime with: journal chat --resume %s\n", id)
	}
	return nil
}

// handleCommand interprets /-prefixed chat commands. The second return is
// false when the line is a regular message.
func handleCommand(ctx context.Context, sess *session.Session, line string) (done, handled bool) {
	if !strings.HasPrefix(line, "/") {
		// Bare quit/exit still works for muscle memory.
		lower := strings.ToLower(line)
		if lower == "quit" || lower == "exit" {
			return true, true
		}
		return false, false
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true, true
	case "mood":
		if rest == "" {
			fmt.Println("Usage: /mood <how you're feeling>")
			return false, true
		}
		sess.SetMood(rest)
		if err := sess.PersistContext(ctx); err != nil {
			fmt.Printf("Could not save mood: %v\n", err)
			return false, true
		}
		fmt.Printf("Mood noted: %s\n", rest)
		return false, true
	case "goal":
		if rest == "" {
			fmt.Println("Usage: /goal <what you're working toward>")
			return false, true
		}
		sess.AddGoal(rest)
		if err := sess.PersistContext(ctx); err != nil {
			fmt.Printf("Could not save goal: %v\n", err)
			return false, true
		}
		fmt.Printf("Goal added: %s\n", rest)
		return false, true
	default:
		fmt.Printf("Unknown command: /%s\n", cmd)
		return false, true
	}
}

// printHistory replays the stored conversation so a resumed session reads
// like it never stopped.
func printHistory(sess *session.Session) {
	for _, turn := range sess.History() {
		prefix := "You"
		if turn.Role == models.RoleAssistant {
			prefix = "Journal"
		}
		fmt.Printf("%s: %s\n", prefix, turn.Content)
	}
	fmt.Println()
}

package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/journal-go/internal/session"
)

// Theme holds the color scheme for the chat display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// replyMsg carries the model's reply back into the UI loop.
type replyMsg struct {
	reply string
	err   error
}

// turnCall is one in-flight exchange. The session is not safe for
// concurrent use, so nothing touches it again until done is closed.
// msg is valid once done is closed.
type turnCall struct {
	result chan replyMsg
	done   chan struct{}
	cancel context.CancelFunc
	msg    replyMsg
}

// startTurn runs SendMessage in the background under its own cancelable
// context.
func startTurn(ctx context.Context, sess *session.Session, text string) *turnCall {
	callCtx, cancel := context.WithCancel(ctx)
	c := &turnCall{
		result: make(chan replyMsg, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		reply, err := sess.SendMessage(callCtx, text)
		c.msg = replyMsg{reply: reply, err: err}
		close(c.done)
		c.result <- c.msg
	}()

	return c
}

// abort cancels the in-flight call and waits for it to release the
// session.
func (c *turnCall) abort() {
	c.cancel()
	<-c.done
}

// thinkingModel is the bubbletea model shown while the LLM responds.
type thinkingModel struct {
	spinner  spinner.Model
	theme    Theme
	wait     tea.Cmd
	reply    string
	err      error
	canceled bool
}

func newThinkingModel(call *turnCall) thinkingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return thinkingModel{
		spinner: sp,
		theme:   defaultTheme,
		wait:    func() tea.Msg { return <-call.result },
	}
}

// Init starts the spinner animation and waits for the in-flight turn.
func (m thinkingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

// Update handles messages and returns the updated model.
func (m thinkingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}

	case replyMsg:
		m.reply = msg.reply
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the waiting line.
func (m thinkingModel) View() tea.View {
	if m.reply != "" || m.err != nil || m.canceled {
		return tea.NewView("")
	}
	hint := m.theme.hintStyle().Render("Ctrl+C to stop waiting")
	line := m.theme.statusStyle().Render(m.spinner.View() + " Thinking...")
	return tea.NewView(fmt.Sprintf("%s %s\n", line, hint))
}

// sendWithSpinner runs one exchange, animating a spinner while the model
// responds when stdout is a terminal. Non-interactive runs call straight
// through so piped usage stays clean. Whatever happens to the UI, this
// only returns once the turn's goroutine has released the session.
func sendWithSpinner(ctx context.Context, sess *session.Session, text string, interactive bool) (string, error) {
	if !interactive {
		return sess.SendMessage(ctx, text)
	}

	call := startTurn(ctx, sess, text)

	p := tea.NewProgram(newThinkingModel(call))
	finalModel, err := p.Run()
	if err != nil {
		// The TUI could not run; wait for the turn plainly.
		<-call.done
		return call.msg.reply, call.msg.err
	}

	m, ok := finalModel.(thinkingModel)
	if !ok {
		call.abort()
		return "", fmt.Errorf("unexpected model type %T", finalModel)
	}
	if m.canceled {
		call.abort()
		return "", context.Canceled
	}
	return m.reply, m.err
}

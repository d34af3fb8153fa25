// Package prompt loads and renders the system-prompt template that frames
// every model invocation with the current session context.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/prompts"
)

// SystemPromptFile is the template file name looked up in the templates
// directory.
const SystemPromptFile = "system_prompt.tmpl"

// Context carries the session state interpolated into the system prompt.
type Context struct {
	UserName     string
	Mood         string
	Goals        []string
	MessageCount int
}

// Manager renders LLM prompt templates loaded from a directory.
type Manager struct {
	systemPrompt prompts.PromptTemplate
}

// NewManager loads the system prompt template from dir. A missing or
// unrenderable template is a fatal configuration error; callers should
// abort startup.
func NewManager(dir string) (*Manager, error) {
	path := filepath.Join(dir, SystemPromptFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load system prompt template %s: %w", path, err)
	}

	m := &Manager{
		systemPrompt: prompts.PromptTemplate{
			Template:       string(raw),
			InputVariables: []string{"userName", "mood", "goals", "messageCount"},
			TemplateFormat: prompts.TemplateFormatGoTemplate,
		},
	}

	// Fail at startup, not on the first chat turn.
	if _, err := m.RenderSystemPrompt(Context{}); err != nil {
		return nil, fmt.Errorf("validate system prompt template %s: %w", path, err)
	}

	return m, nil
}

// RenderSystemPrompt renders the system prompt with the given session
// context.
func (m *Manager) RenderSystemPrompt(pc Context) (string, error) {
	rendered, err := m.systemPrompt.Format(map[string]any{
		"userName":     pc.UserName,
		"mood":         pc.Mood,
		"goals":        pc.Goals,
		"messageCount": pc.MessageCount,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return rendered, nil
}

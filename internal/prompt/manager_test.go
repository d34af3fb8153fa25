package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SystemPromptFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestNewManagerMissingTemplate(t *testing.T) {
	_, err := NewManager(t.TempDir())
	if err == nil {
		t.Fatal("NewManager() on an empty directory should fail")
	}
}

func TestRenderSystemPromptWithContext(t *testing.T) {
	dir := writeTemplate(t, strings.TrimSpace(`
You are a journaling companion.
{{if .userName}}Name: {{.userName}}{{end}}
{{if .mood}}Mood: {{.mood}}{{end}}
{{range .goals}}Goal: {{.}}
{{end}}`))

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	got, err := m.RenderSystemPrompt(Context{
		UserName: "Sam",
		Mood:     "tired",
		Goals:    []string{"sleep more", "worry less"},
	})
	if err != nil {
		t.Fatalf("RenderSystemPrompt() error = %v", err)
	}

	for _, want := range []string{"Name: Sam", "Mood: tired", "Goal: sleep more", "Goal: worry less"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, got)
		}
	}
}

func TestRenderSystemPromptEmptyContext(t *testing.T) {
	dir := writeTemplate(t, "Base persona.\n{{if .userName}}Name: {{.userName}}{{end}}\n")

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	got, err := m.RenderSystemPrompt(Context{})
	if err != nil {
		t.Fatalf("RenderSystemPrompt() error = %v", err)
	}
	if strings.Contains(got, "Name:") {
		t.Errorf("empty context should not render the name block:\n%s", got)
	}
}

func TestShippedTemplateRenders(t *testing.T) {
	m, err := NewManager(filepath.Join("..", "..", "templates"))
	if err != nil {
		t.Fatalf("NewManager() on shipped templates error = %v", err)
	}

	got, err := m.RenderSystemPrompt(Context{UserName: "Sam", Goals: []string{"write"}, MessageCount: 6})
	if err != nil {
		t.Fatalf("RenderSystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "Sam") {
		t.Errorf("shipped template should interpolate the user name:\n%s", got)
	}
}

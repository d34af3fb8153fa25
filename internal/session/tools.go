package session

import (
	"fmt"

	"github.com/raphaelgruber/journal-go/internal/llm"
)

// sessionTools describes the functions the model may invoke during a
// turn. Both mutate session state only; persistence stays with the
// caller, exactly like SetMood and AddGoal.
func sessionTools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "update_mood",
			Description: "Update the writer's current mood.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mood": map[string]any{
						"type":        "string",
						"description": "The writer's current mood.",
					},
				},
				"required": []string{"mood"},
			},
		},
		{
			Name:        "add_goal",
			Description: "Record a new goal the writer mentioned.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goal": map[string]any{
						"type":        "string",
						"description": "The goal to record.",
					},
				},
				"required": []string{"goal"},
			},
		},
	}
}

// applyTool executes a tool call against the session state and returns the
// result text reported back to the model.
func (s *Session) applyTool(call *llm.ToolCall) string {
	switch call.Name {
	case "update_mood":
		mood, ok := call.Arguments["mood"].(string)
		if !ok || mood == "" {
			return "Error: mood argument missing"
		}
		s.SetMood(mood)
		return fmt.Sprintf("Mood updated to: %s", mood)

	case "add_goal":
		goal, ok := call.Arguments["goal"].(string)
		if !ok || goal == "" {
			return "Error: goal argument missing"
		}
		s.AddGoal(goal)
		return fmt.Sprintf("Goal added: %s", goal)

	default:
		s.log.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
}

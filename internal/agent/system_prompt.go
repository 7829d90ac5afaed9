package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/nanoagent/internal/llm"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Workspace   string
	Tools       []llm.ToolDefinition
	ChannelID   string
	ChatID      string
	Summary     string
	ExtraPrompt string
	Now         time.Time
}

// BuildSystemPrompt constructs the system prompt for the LLM.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02 15:04 (Monday)"))
	if cfg.Workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", cfg.Workspace)
	}
	if cfg.ChannelID != "" {
		fmt.Fprintf(&b, "Channel: %s\n", cfg.ChannelID)
	}
	if cfg.ChatID != "" {
		fmt.Fprintf(&b, "Chat ID: %s\n", cfg.ChatID)
	}

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- When using tools, explain what you're doing.\n")
	b.WriteString("- Reply with plain text once no more tools are needed.\n")

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	if cfg.Summary != "" {
		b.WriteString("\n## Summary of Earlier Conversation\n\n")
		b.WriteString(cfg.Summary)
		b.WriteString("\n")
	}

	return b.String()
}

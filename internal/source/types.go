package source

import (
	"encoding/json"

	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// RawEntry is one line of a Claude Code JSONL session file.
type RawEntry struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Cwd       string      `json:"cwd,omitempty"`
	Message   *RawMessage `json:"message,omitempty"`
}

// RawMessage is the assistant message envelope.
type RawMessage struct {
	ID    string    `json:"id"`
	Model string    `json:"model"`
	Usage *RawUsage `json:"usage,omitempty"`
}

// RawUsage holds token counts from the API response.
type RawUsage struct {
	InputTokens              int64          `json:"input_tokens"`
	OutputTokens             int64          `json:"output_tokens"`
	CacheCreationInputTokens int64          `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64          `json:"cache_read_input_tokens"`
	CacheCreation            *CacheCreation `json:"cache_creation,omitempty"`
}

// CacheCreation splits cache writes by TTL.
type CacheCreation struct {
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
}

// codexLine is one line of a Codex rollout file. Payload stays raw because
// its shape depends on Type.
type codexLine struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// DiscoveredFile is a session log found during scanning.
type DiscoveredFile struct {
	Provider      provider.ID
	Path          string
	Project       string // decoded display name (e.g. "gitlore")
	ProjectDir    string // raw directory name
	FileName      string
	SessionID     string
	IsSubagent    bool
	ParentSession string // for subagents: parent session UUID
}

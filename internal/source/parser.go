// Package source discovers and parses local Codex and Claude Code session
// logs into session records.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// ParseResult holds the output of parsing a single JSONL file.
type ParseResult struct {
	Records     []model.SessionRecord
	ParseErrors int
	Err         error
}

// ParseFile parses df with the reader for its provider.
func ParseFile(df DiscoveredFile) ParseResult {
	if df.Provider == provider.Codex {
		return ParseCodexFile(df)
	}
	return ParseClaudeFile(df)
}

func newScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	return scanner
}

// ParseClaudeFile reads a Claude Code session file, one record per assistant
// message. Streaming writes repeat a message id; the last entry per id wins
// and records keep the order ids first appeared in.
func ParseClaudeFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	var (
		records     []model.SessionRecord
		index       = make(map[string]int)
		parseErrors int
		cwd         string
	)

	scanner := newScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		switch extractTopLevelType(line) {
		case "user", "system":
			if cwd == "" {
				cwd = extractCwdBytes(line)
			}
		case "assistant":
			var entry RawEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				parseErrors++
				continue
			}
			if cwd == "" {
				cwd = entry.Cwd
			}
			msg := entry.Message
			if msg == nil || msg.ID == "" || msg.Usage == nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			if err != nil {
				parseErrors++
				continue
			}

			r := claudeRecord(df, ts.UTC(), msg)
			if i, ok := index[msg.ID]; ok {
				records[i] = r
				continue
			}
			index[msg.ID] = len(records)
			records = append(records, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}

	dir := cwd
	if dir == "" {
		dir = df.Project
	}
	for i := range records {
		records[i].Directory = dir
	}
	return ParseResult{Records: records, ParseErrors: parseErrors}
}

func claudeRecord(df DiscoveredFile, ts time.Time, msg *RawMessage) model.SessionRecord {
	u := msg.Usage
	var cache5m, cache1h int64
	if u.CacheCreation != nil {
		cache5m = u.CacheCreation.Ephemeral5mInputTokens
		cache1h = u.CacheCreation.Ephemeral1hInputTokens
	} else if u.CacheCreationInputTokens > 0 {
		cache5m = u.CacheCreationInputTokens
	}
	input := u.InputTokens + u.CacheReadInputTokens
	return model.SessionRecord{
		SessionID:          df.SessionID,
		SessionFile:        df.FileName,
		Timestamp:          ts,
		Model:              msg.Model,
		InputTokens:        input,
		CachedInputTokens:  u.CacheReadInputTokens,
		CacheWrite5mTokens: cache5m,
		CacheWrite1hTokens: cache1h,
		OutputTokens:       u.OutputTokens,
		TotalTokens:        input + cache5m + cache1h + u.OutputTokens,
	}
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so nested "type" keys are ignored.
// Early-exits once found, so cost does not grow with line length.
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				if val, isKey := classifyType(line, i+len(typeKey)); isKey {
					return val
				}
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value and scanning should continue.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	v := string(line[i : i+end])
	switch v {
	case "assistant", "user", "system":
		return v, true
	}
	return "", true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}

var (
	patCwd1 = []byte(`"cwd":"`)
	patCwd2 = []byte(`"cwd": "`)
)

// extractCwdBytes extracts the cwd field via byte scanning.
func extractCwdBytes(line []byte) string {
	for _, pat := range [][]byte{patCwd1, patCwd2} {
		idx := bytes.Index(line, pat)
		if idx < 0 {
			continue
		}
		start := idx + len(pat)
		end := bytes.IndexByte(line[start:], '"')
		if end < 0 || end > 1024 {
			continue
		}
		return string(line[start : start+end])
	}
	return ""
}

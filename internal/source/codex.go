package source

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

// FallbackCodexModel is charged for token events logged before Codex wrote
// the model name.
const FallbackCodexModel = "gpt-5"

type codexUsage struct {
	input, cached, output, reasoning, total int64
}

func (u codexUsage) zero() bool {
	return u.input == 0 && u.cached == 0 && u.output == 0 && u.reasoning == 0
}

// sub returns u minus prev, floored at zero per field.
func (u codexUsage) sub(prev codexUsage) codexUsage {
	d := func(a, b int64) int64 { return max(a-b, 0) }
	return codexUsage{
		input:     d(u.input, prev.input),
		cached:    d(u.cached, prev.cached),
		output:    d(u.output, prev.output),
		reasoning: d(u.reasoning, prev.reasoning),
		total:     d(u.total, prev.total),
	}
}

// ParseCodexFile reads a Codex rollout file. Each token_count event becomes
// one record holding that turn's usage: last_token_usage when present,
// otherwise the growth of total_token_usage since the previous event.
func ParseCodexFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	var (
		records      []model.SessionRecord
		parseErrors  int
		prevTotals   *codexUsage
		currentModel string
		fallback     bool
	)

	scanner := newScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry codexLine
		if err := json.Unmarshal(line, &entry); err != nil {
			parseErrors++
			continue
		}

		var payload map[string]any
		if len(entry.Payload) > 0 {
			_ = json.Unmarshal(entry.Payload, &payload)
		}

		switch entry.Type {
		case "turn_context":
			if m := extractModel(payload); m != "" {
				currentModel, fallback = m, false
			}
			continue
		case "event_msg":
		default:
			continue
		}
		if payload == nil || payload["type"] != "token_count" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
		if err != nil {
			parseErrors++
			continue
		}

		info, _ := payload["info"].(map[string]any)
		last, hasLast := usageFrom(info, "last_token_usage")
		total, hasTotal := usageFrom(info, "total_token_usage")

		var delta codexUsage
		switch {
		case hasLast:
			delta = last
		case hasTotal:
			if prevTotals != nil {
				delta = total.sub(*prevTotals)
			} else {
				delta = total
			}
		default:
			continue
		}
		if hasTotal {
			prevTotals = &total
		}

		if delta.total <= 0 {
			delta.total = delta.input + delta.output
		}
		delta.cached = min(delta.cached, delta.input)
		if delta.zero() {
			continue
		}

		modelName := extractModel(payload)
		if modelName == "" {
			modelName = extractModel(info)
		}
		isFallback := false
		switch {
		case modelName != "":
			currentModel, fallback = modelName, false
		case currentModel != "":
			modelName, isFallback = currentModel, fallback
		default:
			currentModel, fallback = FallbackCodexModel, true
			modelName, isFallback = FallbackCodexModel, true
		}

		records = append(records, model.SessionRecord{
			SessionID:             df.SessionID,
			SessionFile:           df.FileName,
			Directory:             df.ProjectDir,
			Timestamp:             ts.UTC(),
			Model:                 modelName,
			IsFallbackModel:       isFallback,
			InputTokens:           delta.input,
			CachedInputTokens:     delta.cached,
			OutputTokens:          delta.output,
			ReasoningOutputTokens: delta.reasoning,
			TotalTokens:           delta.total,
		})
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}
	return ParseResult{Records: records, ParseErrors: parseErrors}
}

func usageFrom(info map[string]any, key string) (codexUsage, bool) {
	m, ok := info[key].(map[string]any)
	if !ok {
		return codexUsage{}, false
	}
	cached := count(m["cached_input_tokens"])
	if _, ok := m["cached_input_tokens"]; !ok {
		cached = count(m["cache_read_input_tokens"])
	}
	u := codexUsage{
		input:     count(m["input_tokens"]),
		cached:    cached,
		output:    count(m["output_tokens"]),
		reasoning: count(m["reasoning_output_tokens"]),
		total:     count(m["total_tokens"]),
	}
	if u.total <= 0 {
		u.total = u.input + u.output
	}
	return u, true
}

// count reads a non-negative token count from a JSON number or numeric
// string. Anything else is zero.
func count(v any) int64 {
	switch n := v.(type) {
	case float64:
		if n <= 0 || math.IsNaN(n) {
			return 0
		}
		return int64(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil || i < 0 {
			return 0
		}
		return i
	}
	return 0
}

// extractModel looks for model, model_name, info.model and metadata.model.
func extractModel(m map[string]any) string {
	if m == nil {
		return ""
	}
	for _, key := range []string{"model", "model_name"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if info, ok := m["info"].(map[string]any); ok {
		if s := extractModel(info); s != "" {
			return s
		}
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		if s, ok := meta["model"].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

package source

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/theirongolddev/fuelcheck/internal/provider"
)

const sessionGlob = "**/*.jsonl"

// CodexSessionsDir returns the Codex sessions root: $CODEX_HOME/sessions,
// else ~/.codex/sessions. An explicit codexHome wins over both.
func CodexSessionsDir(codexHome string) string {
	if codexHome == "" {
		codexHome = os.Getenv("CODEX_HOME")
	}
	if codexHome == "" {
		home, _ := os.UserHomeDir()
		codexHome = filepath.Join(home, ".codex")
	}
	return filepath.Join(codexHome, "sessions")
}

// ClaudeProjectsDir returns the Claude Code projects root under claudeDir,
// defaulting to $CLAUDE_CONFIG_DIR or ~/.claude.
func ClaudeProjectsDir(claudeDir string) string {
	if claudeDir == "" {
		claudeDir = os.Getenv("CLAUDE_CONFIG_DIR")
	}
	if claudeDir == "" {
		home, _ := os.UserHomeDir()
		claudeDir = filepath.Join(home, ".claude")
	}
	return filepath.Join(claudeDir, "projects")
}

// ScanCodex discovers Codex session logs under root. A missing root yields no
// files and no error.
func ScanCodex(root string) ([]DiscoveredFile, error) {
	rels, err := glob(root)
	if err != nil {
		return nil, err
	}
	files := make([]DiscoveredFile, 0, len(rels))
	for _, rel := range rels {
		id := strings.TrimSuffix(rel, ".jsonl")
		dir, file := path.Split(id)
		files = append(files, DiscoveredFile{
			Provider:   provider.Codex,
			Path:       filepath.Join(root, filepath.FromSlash(rel)),
			SessionID:  id,
			ProjectDir: strings.TrimSuffix(dir, "/"),
			Project:    strings.TrimSuffix(dir, "/"),
			FileName:   file,
		})
	}
	return files, nil
}

// ScanClaude discovers Claude Code session logs under the projects root,
// marking subagent transcripts.
func ScanClaude(root string) ([]DiscoveredFile, error) {
	rels, err := glob(root)
	if err != nil {
		return nil, err
	}
	files := make([]DiscoveredFile, 0, len(rels))
	for _, rel := range rels {
		parts := strings.Split(rel, "/")
		if len(parts) < 2 {
			continue
		}
		name := parts[len(parts)-1]
		df := DiscoveredFile{
			Provider:   provider.Claude,
			Path:       filepath.Join(root, filepath.FromSlash(rel)),
			ProjectDir: parts[0],
			Project:    decodeProjectName(parts[0]),
			FileName:   name,
		}
		// <project>/<session-uuid>/subagents/agent-<id>.jsonl
		if len(parts) >= 4 && parts[2] == "subagents" {
			df.IsSubagent = true
			df.ParentSession = parts[1]
			df.SessionID = parts[1] + "/" + strings.TrimSuffix(name, ".jsonl")
		} else {
			df.SessionID = strings.TrimSuffix(name, ".jsonl")
		}
		files = append(files, df)
	}
	return files, nil
}

// glob returns slash-separated paths of session logs relative to root, sorted.
func glob(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var rels []string
	err = doublestar.GlobWalk(os.DirFS(root), sessionGlob, func(p string, d fs.DirEntry) error {
		if !d.IsDir() {
			rels = append(rels, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(rels)
	return rels, nil
}

// decodeProjectName extracts a readable project name from Claude Code's
// encoded directory name, where "/" became "-":
//
//	"-Users-dev-projects-gitlore"         -> "gitlore"
//	"-Users-dev-projects-my-cool-project" -> "my-cool-project"
func decodeProjectName(dirName string) string {
	parts := strings.Split(dirName, "-")

	knownParents := map[string]bool{
		"projects": true, "repos": true, "src": true,
		"code": true, "workspace": true, "dev": true,
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			if name := strings.Join(parts[i+1:], "-"); name != "" {
				return name
			}
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return dirName
}

// CountProjects returns the number of unique projects in files.
func CountProjects(files []DiscoveredFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[f.Project] = struct{}{}
	}
	return len(seen)
}

package source

import (
	"fmt"
	"iter"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

// CodexRecords lazily yields records from every Codex session log under the
// sessions root. Each range re-scans the directory. A file that cannot be
// read yields its error and iteration continues with the next file.
func CodexRecords(root string) iter.Seq2[model.SessionRecord, error] {
	return records(root, ScanCodex)
}

// ClaudeRecords is CodexRecords for the Claude Code projects root.
func ClaudeRecords(root string) iter.Seq2[model.SessionRecord, error] {
	return records(root, ScanClaude)
}

func records(root string, scan func(string) ([]DiscoveredFile, error)) iter.Seq2[model.SessionRecord, error] {
	return func(yield func(model.SessionRecord, error) bool) {
		files, err := scan(root)
		if err != nil {
			yield(model.SessionRecord{}, err)
			return
		}
		for _, df := range files {
			res := ParseFile(df)
			if res.Err != nil {
				if !yield(model.SessionRecord{}, fmt.Errorf("parsing %s: %w", df.Path, res.Err)) {
					return
				}
				continue
			}
			for _, r := range res.Records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

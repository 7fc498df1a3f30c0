// Package pipeline discovers and parses a provider's session logs in
// parallel, optionally reusing an on-disk record cache.
package pipeline

import (
	"fmt"
	"iter"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/source"
)

// LoadResult holds the output of the loading pipeline.
type LoadResult struct {
	Records      []model.SessionRecord
	TotalFiles   int
	ParsedFiles  int
	ParseErrors  int
	FileErrors   int
	ProjectCount int
	CacheHits    int
	Reparsed     int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Root returns the session log root for a provider under cfg.
func Root(id provider.ID, cfg config.Config) (string, error) {
	switch id {
	case provider.Codex:
		return source.CodexSessionsDir(cfg.General.CodexHome), nil
	case provider.Claude:
		return source.ClaudeProjectsDir(cfg.General.ClaudeDir), nil
	}
	return "", fmt.Errorf("%s has no local session logs", id)
}

func scan(id provider.ID, root string) ([]source.DiscoveredFile, error) {
	var (
		files []source.DiscoveredFile
		err   error
	)
	switch id {
	case provider.Codex:
		files, err = source.ScanCodex(root)
	case provider.Claude:
		files, err = source.ScanClaude(root)
	default:
		return nil, fmt.Errorf("%s has no local session logs", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return files, nil
}

// Load discovers and parses every session file under root.
// It uses a bounded worker pool for parallel parsing.
func Load(id provider.ID, root string, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := scan(id, root)
	if err != nil {
		return nil, err
	}
	result := &LoadResult{
		TotalFiles:   len(files),
		ProjectCount: source.CountProjects(files),
		Reparsed:     len(files),
	}
	for _, pr := range parseAll(files, 0, len(files), progressFn) {
		result.add(pr)
	}
	return result, nil
}

func (r *LoadResult) add(pr source.ParseResult) {
	if pr.Err != nil {
		r.FileErrors++
		return
	}
	r.ParsedFiles++
	r.ParseErrors += pr.ParseErrors
	r.Records = append(r.Records, pr.Records...)
}

// Seq returns the loaded records as a restartable sequence.
func (r *LoadResult) Seq() iter.Seq[model.SessionRecord] {
	return slices.Values(r.Records)
}

// parseAll parses files with GOMAXPROCS workers. Results keep file order.
// offset is added to the progress count for files already accounted for.
func parseAll(files []source.DiscoveredFile, offset, total int, progressFn ProgressFunc) []source.ParseResult {
	results := make([]source.ParseResult, len(files))
	if len(files) == 0 {
		return results
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	numWorkers = min(numWorkers, len(files))

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64
	wg.Add(numWorkers)
	for range numWorkers {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = source.ParseFile(files[idx])
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n)+offset, total)
				}
			}
		}()
	}
	wg.Wait()
	return results
}

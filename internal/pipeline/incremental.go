package pipeline

import (
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/report"
	"github.com/theirongolddev/fuelcheck/internal/source"
	"github.com/theirongolddev/fuelcheck/internal/store"
)

// LoadWithCache discovers files, diffs them against the cache by mtime and
// size, parses only changed files and returns the combined records in file
// order. Cache entries for files that no longer exist are pruned.
func LoadWithCache(id provider.ID, root string, cache *store.Cache, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := scan(id, root)
	if err != nil {
		return nil, err
	}

	tracked, err := cache.TrackedFiles(id)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	result := &LoadResult{
		TotalFiles:   len(files),
		ProjectCount: source.CountProjects(files),
	}

	var (
		toReparse []source.DiscoveredFile
		infos     []store.FileInfo
	)
	fresh := make(map[string]bool, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f.Path] = struct{}{}
		st, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		info := store.FileInfo{MtimeNs: st.ModTime().UnixNano(), SizeBytes: st.Size()}
		if cached, ok := tracked[f.Path]; ok && cached == info {
			fresh[f.Path] = true
			continue
		}
		toReparse = append(toReparse, f)
		infos = append(infos, info)
	}

	for path := range tracked {
		if _, ok := seen[path]; !ok {
			_ = cache.DeleteFile(path)
		}
	}

	var cached map[string][]model.SessionRecord
	if len(fresh) > 0 {
		cached, err = cache.LoadRecords(id)
		if err != nil {
			return nil, fmt.Errorf("loading cached records: %w", err)
		}
	}

	result.CacheHits = len(fresh)
	result.Reparsed = len(toReparse)
	parsed := parseAll(toReparse, result.CacheHits, result.TotalFiles, progressFn)
	byPath := make(map[string]source.ParseResult, len(parsed))
	for i, pr := range parsed {
		byPath[toReparse[i].Path] = pr
		if pr.Err == nil {
			_ = cache.SaveFile(id, toReparse[i].Path, infos[i], pr.Records, pr.ParseErrors)
		}
	}

	for _, f := range files {
		if fresh[f.Path] {
			result.ParsedFiles++
			result.Records = append(result.Records, cached[f.Path]...)
			continue
		}
		if pr, ok := byPath[f.Path]; ok {
			result.add(pr)
		}
	}
	return result, nil
}

// Loader returns a report loader reading session logs under cfg's roots.
// A nil cache parses every file on each call. progressFn, when non-nil, sees
// each provider's parse progress in turn.
func Loader(cfg config.Config, cache *store.Cache, progressFn ProgressFunc, logger *slog.Logger) report.Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return func(id provider.ID) (iter.Seq[model.SessionRecord], error) {
		root, err := Root(id, cfg)
		if err != nil {
			return nil, err
		}
		var res *LoadResult
		if cache != nil {
			res, err = LoadWithCache(id, root, cache, progressFn)
		} else {
			res, err = Load(id, root, progressFn)
		}
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded session logs",
			"event", "records_loaded",
			"provider", string(id),
			"root", root,
			"files", res.TotalFiles,
			"records", len(res.Records),
			"cache_hits", res.CacheHits,
			"reparsed", res.Reparsed,
			"parse_errors", res.ParseErrors,
			"file_errors", res.FileErrors,
		)
		return res.Seq(), nil
	}
}

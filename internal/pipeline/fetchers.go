package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"briefdesk/internal/types"
)

// FileFetcher reads source records from a JSON export on disk. The CLI
// uses these for offline digests; live connectors satisfy the same
// Fetcher interface.
type FileFetcher struct {
	source string
	path   string
}

// NewFileFetcher creates a fetcher for one export file. The source tag
// defaults to the file's base name without extension.
func NewFileFetcher(source, path string) *FileFetcher {
	if source == "" {
		base := filepath.Base(path)
		source = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &FileFetcher{source: source, path: path}
}

func (f *FileFetcher) Source() string { return f.source }

// Fetch loads the JSON array of records. Records missing a source tag
// inherit the fetcher's.
func (f *FileFetcher) Fetch(ctx context.Context) ([]types.SourceRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	var records []types.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}

	for i := range records {
		if records[i].Source == "" {
			records[i].Source = f.source
		}
	}
	return records, nil
}

// DiscoverFileFetchers builds one FileFetcher per *.json file in dir,
// filtered to enabled sources when the list is non-empty.
func DiscoverFileFetchers(dir string, enabled []string) ([]Fetcher, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	allow := make(map[string]bool, len(enabled))
	for _, source := range enabled {
		allow[source] = true
	}

	var fetchers []Fetcher
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		f := NewFileFetcher("", filepath.Join(dir, entry.Name()))
		if len(allow) > 0 && !allow[f.Source()] {
			continue
		}
		fetchers = append(fetchers, f)
	}
	return fetchers, nil
}

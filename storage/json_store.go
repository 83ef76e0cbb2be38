package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Spydiecy/Sniffle-Power/models"
)

// writeAtomic writes a complete JSON document to path via a temp file and
// rename, so readers never observe a partial document.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("storage: create dir %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write temp for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp for %q: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename %q: %w", path, err)
	}
	return nil
}

// SnapshotStore reads and writes the TokenSnapshot file. The scrape
// orchestrator is its only writer; the analyzer only reads, using Modified
// to detect external updates.
type SnapshotStore struct {
	path string

	mu      sync.Mutex
	lastMod time.Time
}

// NewSnapshotStore creates a SnapshotStore for the given path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the backing file path.
func (s *SnapshotStore) Path() string { return s.path }

// Read loads the snapshot file. A missing file is an error: the analyzer
// cannot start without an input snapshot.
func (s *SnapshotStore) Read() (*models.TokenSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("storage: read snapshot: %w", err)
	}
	var snap models.TokenSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("storage: parse snapshot: %w", err)
	}
	return &snap, nil
}

// Write atomically replaces the snapshot file with the given document.
func (s *SnapshotStore) Write(snap *models.TokenSnapshot) error {
	return writeAtomic(s.path, snap)
}

// Modified reports whether the file's mtime advanced since the last call
// (or since the store was created). A missing file reports false.
func (s *SnapshotStore) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	if info.ModTime().After(s.lastMod) {
		s.lastMod = info.ModTime()
		return true
	}
	return false
}

// BundleStore reads the social-post bundle. The file is produced by an
// external collector and is read-only here.
type BundleStore struct {
	path string
}

// NewBundleStore creates a BundleStore for the given path.
func NewBundleStore(path string) *BundleStore {
	return &BundleStore{path: path}
}

// Read loads the bundle file.
func (b *BundleStore) Read() (models.SocialPostBundle, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("storage: read social bundle: %w", err)
	}
	var bundle models.SocialPostBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("storage: parse social bundle: %w", err)
	}
	return bundle, nil
}

// AnalysisStore reads and writes the analysis-result file. Reads accept the
// canonical {"results": []} shape plus two legacy shapes ({"data": []} and a
// bare array); writes always emit the canonical shape with a best_token
// summary on top.
type AnalysisStore struct {
	path string
}

// NewAnalysisStore creates an AnalysisStore for the given path.
func NewAnalysisStore(path string) *AnalysisStore {
	return &AnalysisStore{path: path}
}

// Read loads prior results. A missing file yields an empty set; a malformed
// file is treated the same (absence of data, never a crash), with the error
// returned for logging.
func (a *AnalysisStore) Read() ([]models.AnalysisResult, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read analysis: %w", err)
	}

	results, err := decodeAnalysis(data)
	if err != nil {
		return nil, fmt.Errorf("storage: parse analysis: %w", err)
	}
	return results, nil
}

// decodeAnalysis tries each known schema variant in order and normalizes to
// the current in-memory model.
func decodeAnalysis(data []byte) ([]models.AnalysisResult, error) {
	var canonical struct {
		Results []models.AnalysisResult `json:"results"`
	}
	if err := json.Unmarshal(data, &canonical); err == nil && canonical.Results != nil {
		return canonical.Results, nil
	}

	var legacy struct {
		Data []models.AnalysisResult `json:"data"`
	}
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.Data != nil {
		return legacy.Data, nil
	}

	var bare []models.AnalysisResult
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	return nil, fmt.Errorf("no known analysis schema matched")
}

// Write atomically replaces the analysis file in the canonical shape,
// computing the best_token summary from the highest overall score.
func (a *AnalysisStore) Write(results []models.AnalysisResult) error {
	doc := models.AnalysisFile{Results: results}
	if len(results) > 0 {
		best := results[0]
		for _, r := range results[1:] {
			if r.Overall > best.Overall {
				best = r
			}
		}
		doc.BestToken = &models.BestToken{
			Symbol:    best.Symbol,
			Overall:   best.Overall,
			Rationale: best.Rationale,
		}
	}
	if doc.Results == nil {
		doc.Results = []models.AnalysisResult{}
	}
	return writeAtomic(a.path, doc)
}

// Close satisfies AnalysisSink; file stores hold no open handles.
func (a *AnalysisStore) Close() error { return nil }

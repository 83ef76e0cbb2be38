package storage

import "github.com/Spydiecy/Sniffle-Power/models"

// AnalysisSink is the interface any analysis-result backend must satisfy.
// The JSON file store is the source of truth; additional sinks (Postgres
// mirror) receive the same full document on every persist.
type AnalysisSink interface {
	Write(results []models.AnalysisResult) error
	Close() error
}

// SnapshotExporter is the interface for secondary snapshot outputs.
type SnapshotExporter interface {
	Export(snap *models.TokenSnapshot) error
}

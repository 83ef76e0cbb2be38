package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Spydiecy/Sniffle-Power/models"
)

// CSVExporter dumps each token snapshot to a CSV file for quick eyeballing.
// The file is rewritten wholesale on every export, mirroring the snapshot's
// replace-not-merge lifecycle. It is safe for concurrent use.
type CSVExporter struct {
	mu   sync.Mutex
	path string
}

// NewCSVExporter creates a CSVExporter writing to the given path.
// Intermediate directories are created automatically.
func NewCSVExporter(path string) (*CSVExporter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("csv: create output dir: %w", err)
		}
	}
	return &CSVExporter{path: path}, nil
}

// Export writes the snapshot's rows (truncating any previous data).
func (c *CSVExporter) Export(snap *models.TokenSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"scraped_at", "chain", "name", "symbol", "quote_symbol", "price",
		"volume", "liquidity", "mcap", "transactions", "age",
		"change_5m", "change_1h", "change_6h", "change_24h", "href",
	}); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	ts := snap.Timestamp.Format(time.RFC3339)
	for _, t := range snap.Tokens {
		row := []string{
			ts, snap.Chain, t.Name, t.Symbol, t.QuoteSymbol, t.Price,
			t.Volume, t.Liquidity, t.MarketCap, t.Transactions, t.Age,
			t.Change5m, t.Change1h, t.Change6h, t.Change24h, t.Href,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Spydiecy/Sniffle-Power/models"
)

// PostgresWriter mirrors analysis results into PostgreSQL for ad-hoc
// querying. The JSON file remains the source of truth; the mirror receives
// the same full document on every persist.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS token_analyses (
			id            SERIAL PRIMARY KEY,
			symbol        VARCHAR(50)   UNIQUE NOT NULL,
			quote_symbol  VARCHAR(50)   NOT NULL DEFAULT '',
			risk          NUMERIC(4,2)  NOT NULL,
			potential     NUMERIC(4,2)  NOT NULL,
			overall       INT           NOT NULL DEFAULT 0,
			rationale     TEXT          NOT NULL DEFAULT '',
			price         NUMERIC(30,12) NOT NULL DEFAULT 0,
			volume        TEXT          NOT NULL DEFAULT '',
			market_cap    TEXT          NOT NULL DEFAULT '',
			liquidity     TEXT          NOT NULL DEFAULT '',
			change_24h    NUMERIC(12,2) NOT NULL DEFAULT 0,
			age           TEXT          NOT NULL DEFAULT '',
			href          TEXT          NOT NULL DEFAULT '',
			last_analyzed TIMESTAMPTZ   NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_token_analyses_risk    ON token_analyses(risk);
		CREATE INDEX IF NOT EXISTS idx_token_analyses_overall ON token_analyses(overall);
	`)
	return err
}

// Write replaces the mirrored result set with the given one.
func (pw *PostgresWriter) Write(results []models.AnalysisResult) error {
	if _, err := pw.db.Exec("DELETE FROM token_analyses"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(results); i += batchSize {
		end := i + batchSize
		if end > len(results) {
			end = len(results)
		}
		if err := pw.insertBatch(results[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []models.AnalysisResult) error {
	const cols = 14
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, r := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for j := 0; j < cols; j++ {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.Symbol, r.QuoteSymbol, r.Risk, r.InvestmentPotential, r.Overall,
			r.Rationale, r.Price, r.Volume, r.MarketCap, r.Liquidity,
			r.Change24h, r.Age, r.Href, r.LastAnalyzed)
	}

	query := fmt.Sprintf(`
		INSERT INTO token_analyses (
			symbol, quote_symbol, risk, potential, overall, rationale,
			price, volume, market_cap, liquidity, change_24h, age, href, last_analyzed
		)
		VALUES %s
		ON CONFLICT (symbol) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

package models

import "time"

// TokenRecord is one row scraped from a DEX Screener listing page. All market
// fields are kept as the locale-formatted text shown on the page; parsing
// happens downstream at analysis time.
type TokenRecord struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	QuoteSymbol  string `json:"symbol1"`
	Price        string `json:"price"`
	Volume       string `json:"volume"`
	Liquidity    string `json:"liquidity"`
	MarketCap    string `json:"mcap"`
	Transactions string `json:"transactions"`
	Age          string `json:"age"`
	Change5m     string `json:"change-5m"`
	Change1h     string `json:"change-1h"`
	Change6h     string `json:"change-6h"`
	Change24h    string `json:"change-24h"`
	Href         string `json:"href"`
}

// TokenSnapshot is the full result of one successful scrape cycle. The file
// is replaced wholesale on every successful cycle; partial cycles never
// overwrite it.
type TokenSnapshot struct {
	Timestamp   time.Time     `json:"timestamp"`
	TotalTokens int           `json:"totalTokens"`
	Chain       string        `json:"chain"`
	SortedBy    string        `json:"sortedBy"`
	Tokens      []TokenRecord `json:"tokens"`
}

// SymbolSet returns the set of symbols present in the snapshot.
func (s *TokenSnapshot) SymbolSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Tokens))
	for _, t := range s.Tokens {
		set[t.Symbol] = struct{}{}
	}
	return set
}

// FindToken returns the first record with the given symbol, or nil.
func (s *TokenSnapshot) FindToken(symbol string) *TokenRecord {
	for i := range s.Tokens {
		if s.Tokens[i].Symbol == symbol {
			return &s.Tokens[i]
		}
	}
	return nil
}

// Tweet is a single social post. Extra fields in the source file are ignored.
type Tweet struct {
	Text string `json:"text"`
}

// TweetGroup holds the posts collected for one token symbol.
type TweetGroup struct {
	Tweets []Tweet `json:"tweets"`
}

// SocialPostBundle maps token symbols to their collected posts. The file is
// produced externally and is read-only to this pipeline.
type SocialPostBundle map[string]TweetGroup

// AnalysisResult is the scored output for one token classified as a memecoin.
// Market fields are denormalized copies from the TokenRecord at enrichment
// time; a market-data resync may refresh them without touching the scores.
type AnalysisResult struct {
	Symbol              string    `json:"symbol"`
	QuoteSymbol         string    `json:"symbol1,omitempty"`
	Risk                float64   `json:"risk"`
	InvestmentPotential float64   `json:"investmentPotential"`
	Overall             int       `json:"overall"`
	Rationale           string    `json:"rationale"`
	Price               float64   `json:"price"`
	Volume              string    `json:"volume"`
	MarketCap           string    `json:"marketCap"`
	Liquidity           string    `json:"liquidity"`
	Change24h           float64   `json:"change24h"`
	Age                 string    `json:"age"`
	Href                string    `json:"href"`
	LastAnalyzed        time.Time `json:"lastAnalyzed"`
}

// BestToken is the summary block written atop the analysis file.
type BestToken struct {
	Symbol    string `json:"symbol"`
	Overall   int    `json:"overall"`
	Rationale string `json:"rationale"`
}

// AnalysisFile is the canonical on-disk shape of the analysis output.
// Readers must also accept the legacy {"data": []} and bare-array shapes;
// see storage.AnalysisStore.
type AnalysisFile struct {
	BestToken *BestToken       `json:"best_token,omitempty"`
	Results   []AnalysisResult `json:"results"`
}

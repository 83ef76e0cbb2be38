package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// Both the scraper and the analyzer load the same struct; each binary reads
// the fields it cares about.
type Config struct {
	// Tor control + proxy
	TorControlAddr string
	TorPassword    string
	ProxyURL       string

	// Scraper
	BaseURL       string
	Chain         string
	PagesToScrape int
	MaxRetries    int
	ScrapeEvery   time.Duration
	SnapshotPath  string
	CookiesPath   string
	DebugDir      string
	CSVExportPath string
	ChromeBin     string

	// Analyzer
	TweetsPath       string
	AnalysisPath     string
	ModelAPIKey      string
	ModelBaseURL     string
	ModelName        string
	ModelCallDelay   time.Duration
	RateLimitRetries int
	FreshnessWindow  time.Duration
	ResyncEvery      time.Duration
	AnalysisEvery    time.Duration
	RiskNormalizer   string
	PostgresDSN      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		TorControlAddr: getEnv("TOR_CONTROL_ADDR", "127.0.0.1:9051"),
		TorPassword:    getEnv("TOR_PASSWORD", ""),
		ProxyURL:       getEnv("PROXY_URL", "socks5://127.0.0.1:9050"),

		BaseURL:       getEnv("DEX_BASE_URL", "https://dexscreener.com"),
		Chain:         getEnv("DEX_CHAIN", "bsc"),
		PagesToScrape: getEnvInt("PAGES_TO_SCRAPE", 7),
		MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		ScrapeEvery:   getEnvDuration("SCRAPE_EVERY", 5*time.Minute),
		SnapshotPath:  getEnv("SNAPSHOT_PATH", "binance_tokens.json"),
		CookiesPath:   getEnv("COOKIES_PATH", "cookies_dexscreener.json"),
		DebugDir:      getEnv("DEBUG_DIR", "debug_screenshots"),
		CSVExportPath: getEnv("CSV_EXPORT_PATH", ""),
		ChromeBin:     getEnv("CHROME_BIN", ""),

		TweetsPath:       getEnv("TWEETS_PATH", "tweets.json"),
		AnalysisPath:     getEnv("ANALYSIS_PATH", "ai_analyzer.json"),
		ModelAPIKey:      getEnv("IOINTEL_API_KEY", ""),
		ModelBaseURL:     getEnv("MODEL_BASE_URL", "https://api.intelligence.io.solutions/api/v1/"),
		ModelName:        getEnv("MODEL_NAME", "meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8"),
		ModelCallDelay:   getEnvDuration("MODEL_CALL_DELAY", 12*time.Second),
		RateLimitRetries: getEnvInt("RATE_LIMIT_RETRIES", 3),
		FreshnessWindow:  getEnvDuration("FRESHNESS_WINDOW", 24*time.Hour),
		ResyncEvery:      getEnvDuration("RESYNC_EVERY", 10*time.Second),
		AnalysisEvery:    getEnvDuration("ANALYSIS_EVERY", 24*time.Hour),
		RiskNormalizer:   getEnv("RISK_NORMALIZER", "relative"),
		PostgresDSN:      getEnv("ANALYZER_POSTGRES_DSN", ""),
	}
}

// ListingURL returns the listing URL for the given page index, sorted by
// pair age ascending so the freshest tokens come first.
func (c *Config) ListingURL(page int) string {
	return c.BaseURL + "/" + c.Chain + "/page-" + strconv.Itoa(page) + "?order=asc&rankBy=pairAge"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

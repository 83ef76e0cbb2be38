package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

// ErrRateLimited means the scoring API throttled us and the bounded retries
// were exhausted. The current enrichment run stops cleanly; work committed
// so far is preserved.
var ErrRateLimited = errors.New("scoring api rate limit exceeded")

const (
	maxTweetExcerpts = 20
	systemPrompt     = "You are a crypto analyst specialized in memecoin analysis. Always respond with valid JSON format only."
)

// TokenScore is the model's verdict for one token.
type TokenScore struct {
	Symbol     string  `json:"symbol"`
	IsMemecoin bool    `json:"is_memecoin"`
	Risk       float64 `json:"risk"`
	Potential  float64 `json:"potential"`
	Overall    int     `json:"overall"`
	Rationale  string  `json:"rationale"`
}

// ScoreClient scores one token. Satisfied by ModelClient; fakes implement it
// in tests.
type ScoreClient interface {
	Score(ctx context.Context, symbol string, rec *models.TokenRecord, tweets []string) (*TokenScore, error)
}

// ModelClient calls an OpenAI-compatible chat endpoint to classify and score
// tokens.
type ModelClient struct {
	client     openai.Client
	model      string
	logger     *utils.Logger
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

// NewModelClient creates a ModelClient from configuration.
func NewModelClient(cfg *config.Config, logger *utils.Logger) *ModelClient {
	return &ModelClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.ModelAPIKey),
			option.WithBaseURL(cfg.ModelBaseURL),
		),
		model:      cfg.ModelName,
		logger:     logger,
		maxRetries: cfg.RateLimitRetries,
		baseDelay:  2 * time.Second,
		sleep:      time.Sleep,
	}
}

// Score asks the model whether the token is a memecoin and, if so, for risk
// and potential scores. A non-conforming response returns (nil, nil): no
// analysis, not an error. Rate limiting is retried with exponential back-off
// in a bounded loop before surfacing ErrRateLimited.
func (m *ModelClient) Score(ctx context.Context, symbol string, rec *models.TokenRecord, tweets []string) (*TokenScore, error) {
	prompt := buildPrompt(symbol, rec, tweets)

	var content string
	delay := m.baseDelay
	for attempt := 0; ; attempt++ {
		resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(m.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.7),
			MaxTokens:   openai.Int(1000),
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				m.logger.Warn("[model] empty completion for %s", symbol)
				return nil, nil
			}
			content = resp.Choices[0].Message.Content
			break
		}

		if !isRateLimit(err) {
			return nil, fmt.Errorf("model call for %s: %w", symbol, err)
		}
		if attempt >= m.maxRetries {
			return nil, ErrRateLimited
		}
		m.logger.Warn("[model] rate limited on %s (attempt %d/%d) — backing off %v",
			symbol, attempt+1, m.maxRetries, delay)
		m.sleep(delay)
		delay *= 2
	}

	score, ok := extractScore(content)
	if !ok {
		m.logger.Warn("[model] unparsable response for %s: %.120s", symbol, content)
		return nil, nil
	}
	if score.Symbol == "" {
		score.Symbol = symbol
	}
	return score, nil
}

func isRateLimit(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

func buildPrompt(symbol string, rec *models.TokenRecord, tweets []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Determine if the following token is a memecoin. Use the recent tweets below if available. "+
		"If there is not enough tweet data, use the token's market data and name to make your determination. "+
		"If it is a memecoin, analyze it for risk (1-10, 10=highest risk), investment potential (1-10, 10=best potential), "+
		"and an overall score (1-100, 100=best overall). Token symbol: %s\n", symbol)

	if rec != nil {
		if info, err := json.Marshal(rec); err == nil {
			fmt.Fprintf(&b, "Token info: %s\n", info)
		}
	}

	if len(tweets) > maxTweetExcerpts {
		tweets = tweets[:maxTweetExcerpts]
	}
	fmt.Fprintf(&b, "Recent tweets: %s\n", strings.Join(tweets, " | "))

	fmt.Fprintf(&b, "Respond ONLY with a single JSON object, no extra text, no code blocks, no explanations. "+
		"The JSON object MUST have these exact keys: symbol, is_memecoin (boolean), risk, potential, overall, rationale. "+
		`Example: { "symbol": %q, "is_memecoin": true, "risk": 5, "potential": 7, "overall": 65, "rationale": "..." }`, symbol)

	return b.String()
}

// extractScore pulls exactly one JSON object out of possibly fenced or noisy
// model output.
func extractScore(text string) (*TokenScore, bool) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = stripControlChars(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var score TokenScore
	if err := dec.Decode(&score); err != nil {
		return nil, false
	}
	return &score, true
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return ' '
		}
		return r
	}, s)
}

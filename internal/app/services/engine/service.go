// Package engine implements the text generation and sentiment analysis
// service. Responses are produced by a local model shim so the service runs
// without external provider credentials.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/generation"
	"github.com/advanced-ai/backend/internal/app/domain/sentiment"
	"github.com/advanced-ai/backend/internal/app/metrics"
	"github.com/advanced-ai/backend/pkg/logger"
)

// ErrEmptyPrompt is returned when a generation request carries no prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// ResponseCache caches generation responses keyed by prompt. The Redis cache
// satisfies this; a nil cache disables caching.
type ResponseCache interface {
	GetGeneration(ctx context.Context, prompt string) (generation.Response, error)
	SetGeneration(ctx context.Context, prompt string, resp generation.Response, ttl time.Duration) error
}

// Config tunes the engine.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	CacheTTL    time.Duration
}

// Service produces generation and sentiment results.
type Service struct {
	cfg   Config
	cache ResponseCache
	log   *logger.Logger
}

// New creates the engine service. cache may be nil.
func New(cfg Config, cache ResponseCache, log *logger.Logger) *Service {
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewDefault("engine")
	}
	return &Service{cfg: cfg, cache: cache, log: log}
}

func (s *Service) Name() string { return "engine" }

func (s *Service) Start(context.Context) error { return nil }

func (s *Service) Stop(context.Context) error { return nil }

// Topics the engine refuses to elaborate on regardless of configuration.
var restrictedKeywords = []string{
	"hack", "exploit", "malware", "phishing", "weapon",
}

var codeKeywords = []string{"code", "program", "script", "function", "algorithm"}

// GenerateText produces a response for the prompt. Conversation context is
// accepted for API compatibility; the shim only inspects the prompt.
func (s *Service) GenerateText(ctx context.Context, prompt string, _ []generation.Message) (generation.Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return generation.Response{}, ErrEmptyPrompt
	}

	if s.cache != nil {
		if cached, err := s.cache.GetGeneration(ctx, prompt); err == nil {
			cached.Cached = true
			return cached, nil
		}
	}

	resp := s.generate(prompt)
	metrics.RecordGeneration(string(resp.Category))

	if s.cache != nil {
		if err := s.cache.SetGeneration(ctx, prompt, resp, s.cfg.CacheTTL); err != nil {
			s.log.WithError(err).Warn("failed to cache generation response")
		}
	}
	return resp, nil
}

func (s *Service) generate(prompt string) generation.Response {
	now := time.Now().UTC()
	lower := strings.ToLower(prompt)

	for _, kw := range restrictedKeywords {
		if strings.Contains(lower, kw) {
			return generation.Response{
				Text:       "I can't help with that topic. Ask me about code, analysis, or general questions instead.",
				Category:   generation.CategoryRestricted,
				Model:      s.cfg.Model,
				Restricted: true,
				Timestamp:  now,
			}
		}
	}

	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) {
			return generation.Response{
				Text:      "Here is a worked example that estimates profit for a simple trading position.",
				Category:  generation.CategoryCode,
				Code:      profitEstimatorJS,
				Language:  "javascript",
				Model:     s.cfg.Model,
				Timestamp: now,
			}
		}
	}

	summary := prompt
	if runes := []rune(summary); len(runes) > 30 {
		summary = string(runes[:30])
	}
	return generation.Response{
		Text:      fmt.Sprintf("Here is my take on %q: this is a simulated completion produced by %s.", summary, s.cfg.Model),
		Category:  generation.CategoryGeneral,
		Model:     s.cfg.Model,
		Timestamp: now,
	}
}

// profitEstimatorJS is the canned code sample. It defines main() so the
// compute sandbox can run it directly.
const profitEstimatorJS = `function estimateProfit(entry, exit, quantity, feeRate) {
    var gross = (exit - entry) * quantity;
    var fees = (entry + exit) * quantity * feeRate;
    return { gross: gross, fees: fees, net: gross - fees };
}

function main() {
    var result = estimateProfit(100, 112, 10, 0.001);
    console.log("net profit: " + result.net.toFixed(2));
    return result;
}`

var positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "happy", "positive"}
var negativeWords = []string{"bad", "terrible", "awful", "horrible", "sad", "negative", "angry"}

// AnalyzeSentiment scores a text by the sentiment-bearing keywords it
// contains. Each keyword counts once regardless of repetition; the score
// starts at 0.5 and shifts 0.1 per net keyword, clamped to [0, 1].
func (s *Service) AnalyzeSentiment(_ context.Context, text string) (sentiment.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return sentiment.Analysis{}, errors.New("text is required")
	}

	lower := strings.ToLower(text)
	var positives, negatives int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positives++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negatives++
		}
	}

	score := 0.5 + 0.1*float64(positives-negatives)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	label := sentiment.LabelNeutral
	switch {
	case score > 0.5:
		label = sentiment.LabelPositive
	case score < 0.5:
		label = sentiment.LabelNegative
	}

	return sentiment.Analysis{
		Sentiment:  label,
		Score:      score,
		Confidence: 0.8,
		Timestamp:  time.Now().UTC(),
	}, nil
}

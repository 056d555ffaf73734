package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/breaker"
	"github.com/tariffmatch/backend/pkg/logger"
)

const systemPromptTemplate = `You are a customs tariff classification expert for the %s tariff schedule.
Classify the product description into harmonized tariff codes.

Return ONLY a JSON array of candidate classifications, best match first:
[{"code": "6109.10.00", "description": "T-shirts, of cotton", "confidence": 0.95, "chapter": "61", "section": "XI", "reasoning": "short explanation"}]

Rules:
- code must be a dotted numeric tariff code
- confidence is between 0.0 and 1.0
- return at most %d candidates`

type Config struct {
	APIKey        string
	Model         string
	Country       string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	MaxCandidates int
}

type Client struct {
	client        *openai.Client
	model         string
	country       string
	temperature   float32
	maxTokens     int
	timeout       time.Duration
	maxCandidates int
	cb            *breaker.Breaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	if cfg.Country == "" {
		cfg.Country = model.DefaultCountry
	}

	cb := breaker.New("classifier:"+cfg.Country, breaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Classifier client initialized",
		zap.String("model", cfg.Model),
		zap.String("country", cfg.Country),
	)

	return &Client{
		client:        openai.NewClient(cfg.APIKey),
		model:         cfg.Model,
		country:       cfg.Country,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		timeout:       cfg.Timeout,
		maxCandidates: cfg.MaxCandidates,
		cb:            cb,
	}
}

// Classify makes a single external classification call. It never retries;
// failures come back as typed ClassificationErrors for the caller's retry
// policy to act on.
func (c *Client) Classify(ctx context.Context, description string) ([]model.MatchCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var candidates []model.MatchCandidate

	err := c.cb.Execute(func() error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: fmt.Sprintf(systemPromptTemplate, c.country, c.maxCandidates),
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: description,
					},
				},
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			},
		)
		if err != nil {
			return wrapAPIError(err)
		}

		if len(resp.Choices) == 0 {
			return model.NewClassificationError(model.KindMalformed, errors.New("empty completion"))
		}

		parsed, err := parseCandidates(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}

		candidates = parsed
		return nil
	})

	if errors.Is(err, breaker.ErrOpen) {
		return nil, model.NewClassificationError(model.KindUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Classification completed",
		zap.String("country", c.country),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// Ping measures classifier backend reachability latency with a cheap
// model-listing call.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.client.ListModels(ctx); err != nil {
		return 0, wrapAPIError(err)
	}
	return time.Since(start), nil
}

func wrapAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewClassificationError(model.KindTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return model.NewClassificationError(model.KindRateLimit, err)
		case apiErr.HTTPStatusCode >= 500:
			return model.NewClassificationError(model.KindUnavailable, err)
		}
	}

	return model.NewClassificationError(model.KindUnavailable, err)
}

// parseCandidates extracts the JSON candidate array out of a completion,
// tolerating surrounding prose and markdown code fences. Candidates with
// invalid codes are dropped; an unparseable or empty response is a
// malformed-response error.
func parseCandidates(content string) ([]model.MatchCandidate, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, model.NewClassificationError(model.KindMalformed,
			fmt.Errorf("no JSON array in response: %.80s", content))
	}

	var raw []struct {
		Code        string  `json:"code"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
		Chapter     string  `json:"chapter"`
		Section     string  `json:"section"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, model.NewClassificationError(model.KindMalformed,
			fmt.Errorf("failed to parse candidates: %w", err))
	}

	candidates := make([]model.MatchCandidate, 0, len(raw))
	for _, r := range raw {
		candidate := model.NewMatchCandidate(r.Code, r.Description, r.Confidence, r.Chapter, r.Section, r.Reasoning)
		if !candidate.ValidCode() {
			logger.Debug("Dropping candidate with invalid code", zap.String("code", r.Code))
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, model.NewClassificationError(model.KindMalformed,
			errors.New("no valid candidates in response"))
	}

	return candidates, nil
}

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/caddl-lab-desk/internal/domain"
)

// DefaultModel is the Gemini model used for insights and captions.
const DefaultModel = "gemini-3-flash-preview"

const defaultThinkingBudget int32 = 10000

// generator sends one request to the model and returns the response text.
type generator interface {
	generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GeminiClient implements domain.InsightProvider and domain.ImageAnalyzer on
// the Gemini API with rate limiting, a circuit breaker and a response cache.
type GeminiClient struct {
	gen            generator
	model          string
	visionModel    string
	thinkingBudget int32
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	cache          *InsightCache
	order          func() []domain.CategoryKey
	logger         *logrus.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithCategoryOrder sets the order in which categories are listed in the
// prompt, normally the active catalog's order.
func WithCategoryOrder(order func() []domain.CategoryKey) GeminiOption {
	return func(c *GeminiClient) {
		c.order = order
	}
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, cfg domain.AIConfig, logger *logrus.Logger, opts ...GeminiOption) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiClient(genaiGenerator{client: client}, cfg, logger, opts...), nil
}

func newGeminiClient(gen generator, cfg domain.AIConfig, logger *logrus.Logger, opts ...GeminiOption) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.ThinkingBudget == 0 {
		cfg.ThinkingBudget = defaultThinkingBudget
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &GeminiClient{
		gen:            gen,
		model:          cfg.Model,
		visionModel:    cfg.VisionModel,
		thinkingBudget: cfg.ThinkingBudget,
		limiter:        rate.NewLimiter(limit, 1),
		breaker:        newCircuitBreaker("Gemini", cfg.Breaker, logger),
		cache:          NewInsightCache(cfg.CacheSize, cfg.CacheTTL),
		order:          func() []domain.CategoryKey { return nil },
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the insight model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// BreakerState returns the circuit breaker state: closed, half-open or open.
func (c *GeminiClient) BreakerState() string {
	return c.breaker.State().String()
}

var insightSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"detailedAnalysis": {
			Type:        genai.TypeString,
			Description: "Full medical analysis with significance, regional differentials, and recommendations.",
		},
		"conciseSummary": {
			Type:        genai.TypeString,
			Description: "1-2 sentence high-level clinical summary.",
		},
		"recommendations": {
			Type:        genai.TypeArray,
			Description: "Short actionable follow-up steps.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"detailedAnalysis", "conciseSummary"},
}

var imageSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"caption":  {Type: genai.TypeString, Description: "One or two sentence clinical caption."},
		"category": {Type: genai.TypeString, Description: "Short image category."},
	},
	Required: []string{"caption", "category"},
}

// GenerateInsight asks the model for a clinical analysis of the report.
func (c *GeminiClient) GenerateInsight(ctx context.Context, report domain.DiagnosticReport) (*domain.Insight, error) {
	prompt := BuildInsightPrompt(report, c.order())
	if cached, ok := c.cache.Get(c.model, prompt); ok {
		c.logger.WithField("report_id", report.ID).Debug("Insight served from cache")
		return cached, nil
	}

	text, err := c.call(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   insightSchema,
		ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(c.thinkingBudget)},
	})
	if err != nil {
		return nil, err
	}
	insight, err := ParseInsight(text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.model, prompt, insight)
	return insight, nil
}

// DescribeImage asks the vision model for a caption and category.
func (c *GeminiClient) DescribeImage(ctx context.Context, data []byte, mimeType string) (*domain.ImageDescription, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(visionPrompt),
	}
	text, err := c.call(ctx, c.visionModel, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   imageSchema,
	})
	if err != nil {
		return nil, err
	}
	return ParseImageDescription(text)
}

func (c *GeminiClient) call(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.gen.generate(ctx, model, contents, config)
	})
	fields := logrus.Fields{
		"model":   model,
		"elapsed": time.Since(start),
	}
	if err != nil {
		err = breakerError(err)
		c.logger.WithFields(fields).WithError(err).Warn("Gemini request failed")
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	c.logger.WithFields(fields).Debug("Gemini request completed")
	return result.(string), nil
}

// ParseInsight decodes the model's JSON answer. Unknown fields, missing
// required fields and blank values are rejected.
func ParseInsight(text string) (*domain.Insight, error) {
	var insight domain.Insight
	if err := decodeStrict(text, &insight); err != nil {
		return nil, fmt.Errorf("malformed insight: %w", err)
	}
	if strings.TrimSpace(insight.DetailedAnalysis) == "" {
		return nil, errors.New("malformed insight: detailedAnalysis is empty")
	}
	if strings.TrimSpace(insight.ConciseSummary) == "" {
		return nil, errors.New("malformed insight: conciseSummary is empty")
	}
	return &insight, nil
}

// ParseImageDescription decodes the vision model's JSON answer.
func ParseImageDescription(text string) (*domain.ImageDescription, error) {
	var desc domain.ImageDescription
	if err := decodeStrict(text, &desc); err != nil {
		return nil, fmt.Errorf("malformed image description: %w", err)
	}
	if strings.TrimSpace(desc.Caption) == "" {
		return nil, errors.New("malformed image description: caption is empty")
	}
	return &desc, nil
}

func decodeStrict(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

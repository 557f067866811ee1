package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mealscan/backend/internal/domain"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const (
	defaultModel             = "gemini-1.5-flash"
	defaultRequestsPerMinute = 15
	defaultMaxRetries        = 3
)

// ClientConfig holds Gemini client settings
type ClientConfig struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
	MaxOutputTokens   int32
	Temperature       float32
	JSONMode          bool
	MaxRetries        int
	Timeout           time.Duration // per request, 0 means no limit
}

type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Client sends meal photos to Gemini and returns the raw response text
type Client struct {
	client      *genai.Client
	generate    generateFunc
	rateLimiter *rate.Limiter
	maxRetries  int
	timeout     time.Duration
	backoff     func(attempt int) time.Duration
	debug       bool
}

// NewClient creates a Gemini client using the official SDK
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	c := newClient(model.GenerateContent, cfg)
	c.client = client
	return c, nil
}

func newClient(generate generateFunc, cfg ClientConfig) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		generate:    generate,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		maxRetries:  maxRetries,
		timeout:     cfg.Timeout,
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables logging of raw model responses
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AnalyzeMealImage asks the model for a nutrition estimate of the pictured meal.
// Transport failures are retried with exponential backoff; the response text is
// returned as-is for the sanitizer.
func (c *Client) AnalyzeMealImage(ctx context.Context, image []byte, mimeType string, note string) (string, error) {
	parts := []genai.Part{
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(buildAnalysisPrompt(note)),
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			log.Printf("[Gemini] Rate limiter error: %v", err)
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.generateOnce(ctx, parts)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrModelFailure, ctx.Err())
			}
			log.Printf("[Gemini] Request error (attempt %d/%d): %v", attempt, c.maxRetries, err)
			lastErr = fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
			if attempt < c.maxRetries {
				if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
					return "", fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
				}
			}
			continue
		}

		text, err := responseText(resp)
		if err != nil {
			log.Printf("[Gemini] Unusable response: %v", err)
			return "", err
		}

		if c.debug {
			log.Printf("[Gemini] Raw response (%d bytes): %s", len(text), text)
		}
		return text, nil
	}

	log.Printf("[Gemini] All %d attempts failed", c.maxRetries)
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.generate(ctx, parts...)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: prompt blocked (%s)", domain.ErrModelFailure, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: empty response", domain.ErrModelFailure)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: candidate has no content (finish reason %s)", domain.ErrModelFailure, candidate.FinishReason)
	}
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		log.Printf("[Gemini] Response hit the output token limit")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", domain.ErrModelFailure)
	}
	return sb.String(), nil
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

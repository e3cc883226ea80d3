// internal/integrations/genai/client.go
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	apphttp "banking-assistant/internal/common/http"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/validation"
	"banking-assistant/internal/models"
)

var (
	ErrIntentResolutionFailed = errors.New("INTENT_RESOLUTION_FAILED")
	ErrIntentAPITimeout       = errors.New("INTENT_API_TIMEOUT")
	ErrTimeRangeFailed        = errors.New("TIME_RANGE_ESCALATION_FAILED")
	ErrDraftingFailed         = errors.New("DRAFTING_FAILED")
	ErrDraftingTimeout        = errors.New("DRAFTING_TIMEOUT")
	ErrConverseFailed         = errors.New("CONVERSE_FAILED")
	ErrLanguageFailed         = errors.New("LANGUAGE_SERVICE_FAILED")
	ErrScreeningFailed        = errors.New("SCREENING_FAILED")
)

const (
	pathIntent    = "/api/ai/banking/intent"
	pathTimeRange = "/api/ai/banking/time-range"
	pathDraft     = "/api/ai/banking/draft"
	pathConverse  = "/api/ai/banking/converse"
	pathDetect    = "/api/ai/language/detect"
	pathTranslate = "/api/ai/language/translate"
	pathScreen    = "/api/ai/guard/screen"
)

var (
	intentSchema    = validation.MustCompile("intent response", validation.IntentResponseSchema)
	timeRangeSchema = validation.MustCompile("time range response", validation.TimeRangeResponseSchema)
)

type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	IntentTimeout    time.Duration
	TimeRangeTimeout time.Duration
	DraftTimeout     time.Duration
}

// Client talks to the external text-generation service. Every call is bounded by
// its own timeout and never retried.
type Client struct {
	config *Config
	http   *apphttp.Client
	logger logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) *Client {
	return NewClientWithHTTP(cfg, apphttp.NewClient(cfg.Timeout), log)
}

// NewClientWithHTTP is used by tests to inject an httptest client.
func NewClientWithHTTP(cfg *Config, hc *apphttp.Client, log logger.Logger) *Client {
	cp := *cfg
	if cp.Timeout <= 0 {
		cp.Timeout = 20 * time.Second
	}
	if cp.IntentTimeout <= 0 {
		cp.IntentTimeout = cp.Timeout
	}
	if cp.TimeRangeTimeout <= 0 {
		cp.TimeRangeTimeout = 5 * time.Second
	}
	if cp.DraftTimeout <= 0 {
		cp.DraftTimeout = cp.Timeout
	}
	cp.BaseURL = strings.TrimSuffix(cp.BaseURL, "/")
	if cp.APIKey != "" {
		hc = hc.WithHeader("Authorization", "Bearer "+cp.APIKey)
	}
	return &Client{
		config: &cp,
		http:   hc,
		logger: logger.ForComponent(log, "genai"),
	}
}

// ResolveIntent returns the structured intents of one message.
func (c *Client) ResolveIntent(ctx context.Context, req IntentRequest) (*models.IntentResolution, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.IntentTimeout)
	defer cancel()

	var raw json.RawMessage
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathIntent, req, &raw); err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrIntentAPITimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrIntentResolutionFailed, err)
	}
	if err := intentSchema.ValidateBytes(raw).Err(intentSchema.Name()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentResolutionFailed, err)
	}

	var res models.IntentResolution
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrIntentResolutionFailed, err)
	}
	for i := range res.Intents {
		res.Intents[i].Domain = models.ParseDomain(string(res.Intents[i].Domain))
		res.Intents[i].Metric = models.ParseMetric(string(res.Intents[i].Metric))
	}

	c.logger.Info("intent resolved", map[string]interface{}{
		"intentCount":        len(res.Intents),
		"confidence":         res.Confidence,
		"needsClarification": res.NeedsClarification,
	})
	return &res, nil
}

// ResolveTimeRange escalates a free-text period the deterministic resolver could
// not handle.
func (c *Client) ResolveTimeRange(ctx context.Context, hint, timezone, today string) (models.TimeRange, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TimeRangeTimeout)
	defer cancel()

	var raw json.RawMessage
	body := timeRangeRequest{Hint: hint, Timezone: timezone, Today: today}
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathTimeRange, body, &raw); err != nil {
		return models.TimeRange{}, fmt.Errorf("%w: %v", ErrTimeRangeFailed, err)
	}
	if err := timeRangeSchema.ValidateBytes(raw).Err(timeRangeSchema.Name()); err != nil {
		return models.TimeRange{}, fmt.Errorf("%w: %v", ErrTimeRangeFailed, err)
	}

	var tr models.TimeRange
	if err := json.Unmarshal(raw, &tr); err != nil {
		return models.TimeRange{}, fmt.Errorf("%w: decode error: %v", ErrTimeRangeFailed, err)
	}
	if err := tr.Validate(); err != nil {
		return models.TimeRange{}, fmt.Errorf("%w: %v", ErrTimeRangeFailed, err)
	}
	return tr, nil
}

// Draft turns normalized data into the customer-facing reply.
func (c *Client) Draft(ctx context.Context, req DraftRequest) (*Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.DraftTimeout)
	defer cancel()

	var out Draft
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathDraft, req, &out); err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrDraftingTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrDraftingFailed, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: empty draft", ErrDraftingFailed)
	}
	return &out, nil
}

// Converse answers a purely conversational turn.
func (c *Client) Converse(ctx context.Context, req ConverseRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.DraftTimeout)
	defer cancel()

	var out textPayload
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathConverse, req, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConverseFailed, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("%w: empty reply", ErrConverseFailed)
	}
	return out.Text, nil
}

// DetectLanguage identifies the language of text.
func (c *Client) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var out Detection
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathDetect, textPayload{Text: text}, &out); err != nil {
		return nil, fmt.Errorf("%w: detect: %v", ErrLanguageFailed, err)
	}
	out.LanguageCode = strings.ToLower(strings.TrimSpace(out.LanguageCode))
	if out.LanguageCode == "" {
		return nil, fmt.Errorf("%w: detect: empty language code", ErrLanguageFailed)
	}
	return &out, nil
}

// Translate converts text into target. Identical languages are returned unchanged
// without a call.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source != "" && strings.EqualFold(source, target) {
		return text, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var out textPayload
	body := translateRequest{Text: text, SourceLanguage: source, TargetLanguage: target}
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathTranslate, body, &out); err != nil {
		return "", fmt.Errorf("%w: translate: %v", ErrLanguageFailed, err)
	}
	if out.Text == "" {
		return "", fmt.Errorf("%w: translate: empty text", ErrLanguageFailed)
	}
	return out.Text, nil
}

// Screen asks the content guard whether text is malicious.
func (c *Client) Screen(ctx context.Context, text string) (*Screening, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var out Screening
	if err := c.http.PostJSON(ctx, c.config.BaseURL+pathScreen, textPayload{Text: text}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreeningFailed, err)
	}
	return &out, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

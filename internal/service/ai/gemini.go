package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/pixelforge/studio/backend/internal/config"
)

var (
	ErrTransport         = errors.New("gemini: transport failure")
	ErrMalformedResponse = errors.New("gemini: malformed response body")
	ErrNoCandidate       = errors.New("gemini: response carries no usable candidate")

	// ErrPromptBlocked is an ErrNoCandidate caused by the user's text tripping a safety filter.
	ErrPromptBlocked = fmt.Errorf("%w: prompt blocked", ErrNoCandidate)
)

// StatusError is returned for any non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.Code, e.Body)
}

// HarmCategories lists the safety categories sent with every request, in wire order.
var HarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float32 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// SafetySettings applies one threshold to every harm category.
func SafetySettings(threshold string) []SafetySetting {
	settings := make([]SafetySetting, 0, len(HarmCategories))
	for _, category := range HarmCategories {
		settings = append(settings, SafetySetting{Category: category, Threshold: threshold})
	}
	return settings
}

// GeminiConfig is the immutable per-process configuration of the Gemini client.
type GeminiConfig struct {
	// Endpoint may contain a {model} placeholder.
	Endpoint   string
	APIKey     string
	Model      string
	Generation GenerationConfig
	Safety     []SafetySetting
	Timeout    time.Duration
}

// GeminiConfigFrom maps the environment configuration onto the client configuration.
func GeminiConfigFrom(cfg config.AIConfig) GeminiConfig {
	return GeminiConfig{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Generation: GenerationConfig{
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
		Safety:  SafetySettings(cfg.SafetyThreshold),
		Timeout: cfg.Timeout,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiClient calls the generateContent REST endpoint. It satisfies eino's BaseChatModel
// so it can sit at the end of a compose chain like any other provider.
type GeminiClient struct {
	cfg  GeminiConfig
	http *resty.Client
}

var _ model.BaseChatModel = (*GeminiClient)(nil)

// NewGeminiClient creates a client. No request is made until Generate.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	client := resty.New().
		SetHeader("User-Agent", "PixelForge-Chat/1.0").
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Safety == nil {
		cfg.Safety = SafetySettings("BLOCK_MEDIUM_AND_ABOVE")
	}

	return &GeminiClient{cfg: cfg, http: client}
}

// GetType names the component for eino callbacks.
func (c *GeminiClient) GetType() string {
	return "Gemini"
}

// Generate flattens the conversation into a single prompt part and returns the first
// candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	gen := c.cfg.Generation
	modelName := c.cfg.Model
	options := model.GetCommonOptions(&model.Options{
		Temperature: &gen.Temperature,
		TopP:        &gen.TopP,
		MaxTokens:   &gen.MaxOutputTokens,
		Model:       &modelName,
	}, opts...)
	if options.Temperature != nil {
		gen.Temperature = *options.Temperature
	}
	if options.TopP != nil {
		gen.TopP = *options.TopP
	}
	if options.MaxTokens != nil {
		gen.MaxOutputTokens = *options.MaxTokens
	}
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	body := generateRequest{
		Contents:         []content{{Parts: []part{{Text: FlattenPrompt(input)}}}},
		GenerationConfig: gen,
		SafetySettings:   c.cfg.Safety,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		Post(c.endpointURL(modelName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Body: truncate(resp.String(), 512)}
	}

	text, err := extractText(resp.Body())
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream has no incremental mode here; it yields the full reply as a single chunk.
func (c *GeminiClient) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (c *GeminiClient) endpointURL(modelName string) string {
	return strings.ReplaceAll(c.cfg.Endpoint, "{model}", url.PathEscape(modelName))
}

// FlattenPrompt renders messages as "<system>\n\nUser: <text>\n\nAssistant:".
func FlattenPrompt(input []*schema.Message) string {
	sections := make([]string, 0, len(input)+1)
	var turns []string
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			sections = append(sections, msg.Content)
		case schema.User:
			turns = append(turns, "User: "+msg.Content)
		case schema.Assistant:
			turns = append(turns, "Assistant: "+msg.Content)
		}
	}
	sections = append(sections, turns...)
	sections = append(sections, "Assistant:")
	return strings.Join(sections, "\n\n")
}

func extractText(raw []byte) (string, error) {
	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if len(payload.Candidates) == 0 {
		if payload.PromptFeedback != nil && payload.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w (%s)", ErrPromptBlocked, payload.PromptFeedback.BlockReason)
		}
		return "", ErrNoCandidate
	}

	first := payload.Candidates[0]
	if first.Content == nil || len(first.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: finish reason %q", ErrNoCandidate, first.FinishReason)
	}

	text := strings.TrimSpace(first.Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrNoCandidate)
	}
	return text, nil
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"intake-agent/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

// generator is the slice of *genai.Models used by Client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client is a completion provider backed by the Gemini API.
type Client struct {
	models generator
	model  string
}

// NewClient creates a Gemini client authenticated with an API key. An empty model
// selects DefaultModel.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithGenerator(client.Models, model), nil
}

func newWithGenerator(g generator, model string) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: g, model: model}
}

// Chat sends the conversation and returns the model's text.
func (c *Client) Chat(ctx context.Context, in domain.ChatRequest) (string, error) {
	contents, cfg, err := buildRequest(in)
	if err != nil {
		return "", err
	}

	res, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if res == nil {
		return "", errors.New("gemini: empty response")
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: returned empty text")
	}
	return text, nil
}

// buildRequest maps a provider-neutral request onto genai contents and config.
// System messages are folded into the system instruction.
func buildRequest(in domain.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range in.Messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("gemini: messages must include a user turn")
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if in.Format != nil {
		var schema map[string]any
		if err := json.Unmarshal(in.Format.Schema, &schema); err != nil {
			return nil, nil, fmt.Errorf("gemini: decode response schema %q: %w", in.Format.Name, err)
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = schema
	}
	return contents, cfg, nil
}

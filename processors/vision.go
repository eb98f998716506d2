package processors

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

const (
	visionCallTimeout  = 300 * time.Second
	singleFrameTokens  = 1000
	batchFrameTokens   = 4000
)

// VisionClient is one model call: a prompt plus encoded frame images in, raw
// response text out. Implementations map transport failures to the sentinel
// errors in core; the executor branches on errors.Is, never on status codes.
type VisionClient interface {
	Send(ctx context.Context, prompt string, images [][]byte) (string, error)
	Model() string
	Kind() core.VisionBackendKind
}

// NewVisionClient builds the client for the resolved backend snapshot.
func NewVisionClient(backend core.VisionBackendConfig) (VisionClient, error) {
	switch backend.Kind {
	case core.BackendStandardAPI:
		cfg := openai.DefaultConfig(backend.APIKey)
		if backend.BaseURL != "" {
			cfg.BaseURL = backend.BaseURL
		}
		return &openAIVisionClient{
			client: openai.NewClientWithConfig(cfg),
			model:  backend.Model,
		}, nil
	case core.BackendCustomHTTP:
		return &customVisionClient{
			http: resty.New().
				SetBaseURL(backend.BaseURL).
				SetAuthToken(backend.BearerToken).
				SetTimeout(visionCallTimeout),
			model: backend.Model,
		}, nil
	default:
		return nil, core.ErrNoVisionBackend
	}
}

func maxTokensFor(imageCount int) int {
	if imageCount > 1 {
		return batchFrameTokens
	}
	return singleFrameTokens
}

func dataURL(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}

// openAIVisionClient talks to the standard chat-completions API with vision
// content parts and a forced JSON object response.
type openAIVisionClient struct {
	client *openai.Client
	model  string
}

func (c *openAIVisionClient) Model() string                { return c.model }
func (c *openAIVisionClient) Kind() core.VisionBackendKind { return core.BackendStandardAPI }

func (c *openAIVisionClient) Send(ctx context.Context, prompt string, images [][]byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, visionCallTimeout)
	defer cancel()

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens: maxTokensFor(len(images)),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision response had no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestEntityTooLarge:
			return fmt.Errorf("%w: %v", core.ErrPayloadTooLarge, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("vision call timed out: %w", err)
	}
	return fmt.Errorf("vision call failed: %w", err)
}

// customVisionClient talks to a bearer-token HTTP endpoint that speaks the
// same wire shape as chat completions.
type customVisionClient struct {
	http  *resty.Client
	model string
}

func (c *customVisionClient) Model() string                { return c.model }
func (c *customVisionClient) Kind() core.VisionBackendKind { return core.BackendCustomHTTP }

type customImageURL struct {
	URL string `json:"url"`
}

type customContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *customImageURL `json:"image_url,omitempty"`
}

type customChatRequest struct {
	Model     string `json:"model"`
	Messages  []any  `json:"messages"`
	MaxTokens int    `json:"max_tokens"`
}

type customChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *customVisionClient) Send(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := make([]customContentPart, 0, len(images)+1)
	parts = append(parts, customContentPart{Type: "text", Text: prompt})
	for _, img := range images {
		parts = append(parts, customContentPart{
			Type:     "image_url",
			ImageURL: &customImageURL{URL: dataURL(img)},
		})
	}

	req := customChatRequest{
		Model:     c.model,
		Messages:  []any{map[string]any{"role": "user", "content": parts}},
		MaxTokens: maxTokensFor(len(images)),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("vision call timed out: %w", err)
		}
		return "", fmt.Errorf("vision call failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusRequestEntityTooLarge:
		return "", fmt.Errorf("%w: endpoint returned 413", core.ErrPayloadTooLarge)
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: endpoint returned %d", core.ErrUnauthenticated, resp.StatusCode())
	default:
		return "", fmt.Errorf("vision endpoint returned %d: %s", resp.StatusCode(), truncateBody(resp.Body()))
	}

	// Decode the body directly; some deployments answer with a loose
	// content type that defeats automatic unmarshaling.
	var out customChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	if len(out.Choices) == 0 {
		// Some deployments return a bare content field instead of choices.
		var alt struct {
			Content string `json:"content"`
		}
		if json.Unmarshal(resp.Body(), &alt) == nil && alt.Content != "" {
			return alt.Content, nil
		}
		return "", fmt.Errorf("vision response had no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	apperrors "brand-zoning/internal/common/errors"
	apphttp "brand-zoning/internal/common/http"
	"brand-zoning/internal/zoning/prompt"
)

// Response formats for the schema hint.
const (
	FormatJSONSchema = "json_schema"
	FormatText       = "text"
)

// OpenAIConfig configures the Responses API client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// ResponseFormat is FormatJSONSchema (send the summary contract as text.format)
	// or FormatText (plain text output, contract enforced only by the prompt).
	ResponseFormat string
}

// OpenAIClient performs single Responses API attempts.
type OpenAIClient struct {
	config OpenAIConfig
	client *apphttp.Client
}

func NewOpenAIClient(config OpenAIConfig, client *apphttp.Client) *OpenAIClient {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ResponseFormat == "" {
		config.ResponseFormat = FormatJSONSchema
	}
	return &OpenAIClient{config: config, client: client}
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textFormat struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name,omitempty"`
	Schema map[string]interface{} `json:"schema,omitempty"`
	Strict *bool                  `json:"strict,omitempty"`
}

type textConfig struct {
	Format textFormat `json:"format"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Text        *textConfig    `json:"text,omitempty"`
	Temperature float64        `json:"temperature"`
}

type responsesReply struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

type apiErrorReply struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) buildRequest(req Request) (responsesRequest, error) {
	body := responsesRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
	}
	for _, seg := range req.Bundle.Segments {
		body.Input = append(body.Input, inputMessage{Role: seg.Role.WireRole(), Content: seg.Content})
	}

	if c.config.ResponseFormat == FormatJSONSchema {
		schema, err := req.Bundle.Schema.Map()
		if err != nil {
			return body, err
		}
		strict := false
		body.Text = &textConfig{Format: textFormat{
			Type:   FormatJSONSchema,
			Name:   prompt.SchemaName,
			Schema: schema,
			Strict: &strict,
		}}
	}
	return body, nil
}

// Complete performs one attempt. Timeouts and upstream API failures come back as
// retryable StandardErrors; request construction and decoding failures do not.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return "", apperrors.NewLLMRequestInvalidError(err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", apperrors.NewLLMRequestInvalidError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewLLMRequestInvalidError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Fetch(ctx, httpReq)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewLLMAPIError(resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, upstreamMessage(resp.Body)))
	}

	var reply responsesReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return "", apperrors.NewLLMResponseInvalidError(err)
	}
	return reply.text(), nil
}

func (r responsesReply) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func upstreamMessage(body []byte) string {
	var e apiErrorReply
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}

func classifyTransportError(ctx context.Context, err error) error {
	// The caller gave up: not a transient upstream fault.
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("model call cancelled: %w", ctxErr)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewLLMTimeoutError(err)
	}
	return apperrors.NewLLMConnectionError(err)
}

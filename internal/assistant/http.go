package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sakif/family-trips/internal/apperror"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// HTTPModel calls a chat completions endpoint.
type HTTPModel struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPModel creates an HTTPModel. endpoint is the full chat completions
// URL, e.g. https://api.openai.com/v1/chat/completions.
func NewHTTPModel(endpoint, apiKey, model string, logger *slog.Logger) *HTTPModel {
	return &HTTPModel{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   logger,
	}
}

// Wire types for the chat completions dialect.

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func toChatTools(tools []Tool) []chatTool {
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]any, len(t.Params))
		for name, desc := range t.Params {
			props[name] = map[string]string{"type": "string", "description": desc}
		}
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  map[string]any{"type": "object", "properties": props},
			},
		})
	}
	return out
}

// Complete sends req and returns the first choice.
func (m *HTTPModel) Complete(ctx context.Context, req Request) (*Reply, error) {
	body := chatRequest{Model: m.model, Tools: toChatTools(req.Tools)}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("assistant: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("assistant: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	start := time.Now()
	resp, err := m.client.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, apperror.Timeout("assistant request")
		}
		return nil, fmt.Errorf("assistant: calling model: %w", err)
	}
	defer resp.Body.Close()

	m.logger.Debug("model call finished",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("assistant: model returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("assistant: decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("assistant: response has no choices")
	}

	msg := decoded.Choices[0].Message
	reply := &Reply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args, err := decodeArgs(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("assistant: decoding arguments of %s: %w", tc.Function.Name, err)
		}
		reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{Name: tc.Function.Name, Args: args})
	}
	return reply, nil
}

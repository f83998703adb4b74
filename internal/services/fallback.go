package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// ToolSpec describes one callable action in the closed set the
// fallback classifier is allowed to pick from. It cannot invent
// intents outside this list.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolCall is the classifier's pick. A nil ToolCall is a decline and a
// valid "no match".
type ToolCall struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args"`
}

// FallbackClassifier is the statistical last stage of the cascade.
type FallbackClassifier interface {
	Classify(ctx context.Context, text string, tools []ToolSpec) (*ToolCall, error)
}

// ClosedToolSet is the fixed, narrow action list given to the
// fallback.
var ClosedToolSet = []ToolSpec{
	{Name: "log_expense", Description: "User reports money they spent (materials, fuel, tools)."},
	{Name: "log_revenue", Description: "User reports money they received (payment, deposit, cheque)."},
	{Name: "time_clock", Description: "User wants to clock in or out of work."},
	{Name: "manage_job", Description: "User wants to start, finish, pause, resume or list jobs."},
	{Name: "manage_task", Description: "User wants to add, list or complete a task."},
	{Name: "move_last_log", Description: "User wants to reassign their most recent entry to another job."},
}

var toolToFamily = map[string]string{
	"log_expense":   IntentExpense,
	"log_revenue":   IntentRevenue,
	"time_clock":    IntentTimeclock,
	"manage_job":    IntentJob,
	"manage_task":   IntentTask,
	"move_last_log": IntentMoveLog,
}

const fallbackSystemPrompt = `You classify one short message from a contractor's bookkeeping chat.
Pick exactly one tool ONLY if you are at least 95% confident it matches the user's intent.
Otherwise reply with the single word DECLINE. Never guess, never invent tools.`

// HTTPFallbackClassifier calls an OpenAI-compatible chat-completions
// endpoint with temperature 0 and the closed tool set.
type HTTPFallbackClassifier struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPFallbackClassifier builds the classifier from environment
// configuration. Returns nil when no endpoint is configured, which
// disables stage 5.
func NewHTTPFallbackClassifier() *HTTPFallbackClassifier {
	endpoint := os.Getenv("FALLBACK_CLASSIFIER_URL")
	if endpoint == "" {
		return nil
	}
	model := os.Getenv("FALLBACK_CLASSIFIER_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPFallbackClassifier{
		endpoint: endpoint,
		apiKey:   os.Getenv("FALLBACK_CLASSIFIER_API_KEY"),
		model:    model,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify posts the message with the closed tool schema. Any
// transport or parse failure surfaces as an error; the cascade treats
// it as "no opinion".
func (c *HTTPFallbackClassifier) Classify(ctx context.Context, text string, tools []ToolSpec) (*ToolCall, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: fallbackSystemPrompt},
			{Role: "user", Content: text},
		},
	}
	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: t.Name, Description: t.Description},
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback classifier returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, nil
	}

	msg := parsed.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		// Plain content (DECLINE or anything else) is a decline.
		return nil, nil
	}

	call := msg.ToolCalls[0]
	if _, ok := toolToFamily[call.Function.Name]; !ok {
		// The model stepped outside the closed set; treat as decline.
		return nil, nil
	}

	args := map[string]string{}
	if call.Function.Arguments != "" {
		// Arguments are best effort; classification works without them.
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
	}
	return &ToolCall{Tool: call.Function.Name, Args: args}, nil
}

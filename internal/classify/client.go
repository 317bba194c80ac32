// Package classify implements the remote sentence classifier used by the
// hybrid detector: one batched chat-completions call that returns a
// strict boolean verdict per submitted sentence.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soundbench/huddle/internal/detect"
)

const apiVersion = "2024-12-01-preview"

const classifySystemPrompt = "You classify whether each utterance is a QUESTION. " +
	"QUESTION = seeks information, clarification, definition, comparison, explanation, or conceptual instruction. " +
	"Imperative info requests like 'Explain X', 'Describe Y', 'Walk me through Z' are QUESTION. " +
	"NOT = purely action commands (e.g. 'Deploy the update now.'), greetings, statements, status reports."

const classifyExamples = "Examples:\n" +
	"\"Explain dependency injection in .NET applications.\" => true\n" +
	"\"Explain the difference between class and struct in C sharp.\" => true\n" +
	"\"It's stable, right?\" => true\n" +
	"\"Deploy the update now.\" => false\n" +
	"\"Send me the report.\" => false"

// Client calls an OpenAI-compatible chat-completions deployment with a
// JSON-schema constrained response.
type Client struct {
	endpoint   string
	deployment string
	apiKey     string
	client     *http.Client
}

func NewClient(endpoint, deployment, apiKey string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Messages       []message      `json:"messages"`
	Model          string         `json:"model"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type classifications struct {
	Classifications []detect.Verdict `json:"classifications"`
}

// verdictSchema constrains the model to {"classifications":[{id,isQuestion}]}.
var verdictSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"classifications"},
	"additionalProperties": false,
	"properties": map[string]any{
		"classifications": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"required":             []string{"id", "isQuestion"},
				"additionalProperties": false,
				"properties": map[string]any{
					"id":         map[string]any{"type": "integer"},
					"isQuestion": map[string]any{"type": "boolean"},
				},
			},
		},
	},
}

// Classify submits the review batch and returns the verdicts the model
// produced. Verdicts may cover only a subset of the submitted ids.
func (c *Client) Classify(ctx context.Context, items []detect.ReviewItem) ([]detect.Verdict, error) {
	lines, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal review items: %w", err)
	}

	reqBody := request{
		Model: c.deployment,
		Messages: []message{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: "Return strict JSON only. Do not add commentary. Provide an array of {id,isQuestion} under property 'classifications'."},
			{Role: "user", Content: classifyExamples},
			{Role: "user", Content: "Lines: " + string(lines)},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: "question_classification", Schema: verdictSchema},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.endpoint, c.deployment, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("empty classification content")
	}

	var out classifications
	if err := json.Unmarshal([]byte(apiResp.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("parse classifications: %w", err)
	}
	return out.Classifications, nil
}

package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the slice of the OpenAI client the judge needs.
// *openai.Client satisfies it; tests supply fakes.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Judge scores feature output by sending an evaluation prompt to a chat
// model and decoding the structured JSON reply.
type Judge struct {
	client      ChatClient
	model       string
	temperature float32
	specs       *SpecSet
}

// New constructs a Judge. The spec set provides the system instructions for
// every evaluation call.
func New(client ChatClient, model string, temperature float32, specs *SpecSet) *Judge {
	return &Judge{
		client:      client,
		model:       model,
		temperature: temperature,
		specs:       specs,
	}
}

// NewOpenAIClient builds the default chat client from an API key.
func NewOpenAIClient(apiKey string) *openai.Client {
	return openai.NewClient(apiKey)
}

// Evaluate sends the task prompt with the spec set as system instructions
// and returns the model's raw JSON reply. Failures propagate unchanged to
// the pipeline, which records them against the test case.
func (j *Judge) Evaluate(ctx context.Context, taskPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: j.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: j.specs.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: taskPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("judge completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("judge returned an empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

// DecodeColumns unmarshals a judge reply into the plugin's column type.
// Unknown fields are rejected so schema drift surfaces as an error instead
// of silently dropping scores.
func DecodeColumns[C any](content string) (C, error) {
	var cols C
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cols); err != nil {
		return cols, fmt.Errorf("failed to decode judge columns: %w", err)
	}
	return cols, nil
}

// TaskPrompt builds the evaluation prompt for one test case from its input
// description, the actual feature output, and the expected output when the
// suite provides one.
func TaskPrompt(inputDescription, actualOutput string, expected *string) string {
	example := "N/A"
	if expected != nil {
		example = *expected
	}

	var sb strings.Builder
	sb.WriteString("Evaluate the feature output below against the scoring rubric.\n\n")
	sb.WriteString("## Input\n\n")
	sb.WriteString(inputDescription)
	sb.WriteString("\n\n## Actual Output\n\n")
	sb.WriteString(actualOutput)
	sb.WriteString("\n\n## Expected Output\n\n")
	sb.WriteString(example)
	sb.WriteString("\n\nRespond with a single JSON object matching the evaluation schema.\n")
	return sb.String()
}

package conversation

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAIAPI struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeOpenAIAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAILLMClientComplete(t *testing.T) {
	api := &fakeOpenAIAPI{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: " Drink water. "},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	}}
	client := newOpenAILLMClientWithAPI(api, "")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System:      []string{"be careful", "  "},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "hi"}, {Role: "tool", Content: "x"}},
		MaxTokens:   100,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	assert.Equal(t, defaultOpenAIModel, api.req.Model)
	assert.Equal(t, 100, api.req.MaxTokens)
	require.Len(t, api.req.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, api.req.Messages[2].Role)
}

func TestOpenAILLMClientErrors(t *testing.T) {
	client := newOpenAILLMClientWithAPI(&fakeOpenAIAPI{err: errors.New("429")}, "gpt-4o")
	_, err := client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "429")

	client = newOpenAILLMClientWithAPI(&fakeOpenAIAPI{}, "gpt-4o")
	_, err = client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "no choices")

	_, err = NewOpenAILLMClient(" ", "")
	assert.Error(t, err)
}

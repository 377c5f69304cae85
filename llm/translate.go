// Package llm rewrites transcripts into the target language with an
// OpenAI chat model.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the completion response carries no
// usable message.
var ErrNoChoices = errors.New("completion response has no choices")

// Translation is a translated transcript plus the token usage the
// service reported for the call.
type Translation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Translator rewrites text into a configured target language.
type Translator interface {
	Translate(ctx context.Context, text string) (Translation, error)
}

// Prompt builds the instruction the chat model receives. The shape is
// load-bearing: the model must answer only in the target language and
// must not quote the translation.
func Prompt(targetLanguage, text string) string {
	return fmt.Sprintf(
		"You are a language translation app for VRChat. Answer only in the target language. Do not quote the translation. target_language=%s Text:\n\n%s",
		targetLanguage, text,
	)
}

// EstimateTokens is a rough fallback when the service reports no
// usage: one token per four characters.
func EstimateTokens(s string) int { return len(s) / 4 }

type OpenAITranslator struct {
	client         *openai.Client
	model          string
	targetLanguage string
}

func NewOpenAITranslator(apiKey, model, targetLanguage string) *OpenAITranslator {
	return &OpenAITranslator{
		client:         openai.NewClient(apiKey),
		model:          model,
		targetLanguage: targetLanguage,
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, text string) (Translation, error) {
	prompt := Prompt(t.targetLanguage, text)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return Translation{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Translation{}, ErrNoChoices
	}

	result := Translation{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if result.PromptTokens == 0 {
		result.PromptTokens = EstimateTokens(prompt)
	}
	if result.CompletionTokens == 0 {
		result.CompletionTokens = EstimateTokens(result.Text)
	}

	return result, nil
}

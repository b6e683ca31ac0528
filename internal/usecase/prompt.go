package usecase

import "prompt-relay/internal/domain"

const (
	completionModel     = "gpt-4o"
	completionMaxTokens = 150
)

// systemInstruction steers the model to pick one element of the category it is given.
const systemInstruction = "You are gonna be provided of a category. Choose the best element of that given category. " +
	"Anything else. No explanations. Make your calculations and provide the result."

func buildPromptMessages(prompt string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: prompt},
	}
}

func buildCompletionRequest(prompt string) domain.CompletionRequest {
	return domain.CompletionRequest{
		Model:     completionModel,
		Messages:  buildPromptMessages(prompt),
		MaxTokens: completionMaxTokens,
	}
}

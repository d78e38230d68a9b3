package conversation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// cl100k_base covers the GPT-4 family and is close enough for the
		// OpenAI-compatible providers we target.
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts tokens in a text. Used only as a fallback when the
// provider omits usage from a response.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// CountTokensForMessages counts tokens for a message list, including the
// per-message formatting overhead documented by OpenAI.
func CountTokensForMessages(messages []Message) int {
	if err := initTokenEncoder(); err != nil {
		total := 0
		for _, msg := range messages {
			total += estimateTokens(msg.Content)
		}
		return total
	}

	total := 2
	for _, msg := range messages {
		total += 4
		total += len(tokenEncoder.Encode(msg.Role, nil, nil))
		total += len(tokenEncoder.Encode(msg.Content, nil, nil))
	}
	return total
}

// estimateTokens approximates token count as chars/4 when tiktoken is
// unavailable.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

package correction

import (
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/tiktoken-go/tokenizer"

	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
)

// CountText returns the approximate number of tokens in text, using the o200k_base encoding.
func CountText(text string) int {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		panic(fmt.Errorf("invalid encoder: %v", tokenizer.O200kBase))
	}

	count, err := enc.Count(text)
	if err != nil {
		simplelogger.Log("correction: could not count tokens for text. err=%v", err)
		return len(text) / 4
	}
	return count
}

// CountTokens sums CountText over the text of system and user messages.
func CountTokens(messages []openai.ChatCompletionMessageParamUnion) int {
	total := 0
	for _, m := range messages {
		switch {
		case m.OfSystem != nil:
			total += CountText(m.OfSystem.Content.OfString.Value)
		case m.OfUser != nil:
			total += CountText(m.OfUser.Content.OfString.Value)
		}
	}
	return total
}

package correction

import (
	"strings"

	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
)

const outputFormatKey = "typoFixed"

// Delimiters around the corrected sentence in the model's reply.
const (
	StartTag = "<" + outputFormatKey + ">"
	EndTag   = "</" + outputFormatKey + ">"
)

// outputInstructions is appended to the system prompt.
const outputInstructions = "OUTPUT FORMAT\n" + StartTag + "{HERE_IS_FIXED_SENTENCE}" + EndTag + "\n"

// systemMessage returns the system prompt with output instructions appended.
func systemMessage(systemPrompt string) string {
	return systemPrompt + "\n\n" + outputInstructions
}

// userMessage returns the user turn for line.
func userMessage(line string) string {
	return "Fix typo: " + line
}

// Extract returns the corrected sentence from a model reply: the text before the first EndTag, then the text after the first StartTag within it. A missing tag is logged
// and otherwise tolerated.
func Extract(text string) string {
	if !strings.Contains(text, StartTag) {
		simplelogger.Log("correction: the start tag, %s, is not found in text: %q", StartTag, text)
	}
	if !strings.Contains(text, EndTag) {
		simplelogger.Log("correction: the end tag, %s, is not found in text: %q", EndTag, text)
	}

	fixed, _, _ := strings.Cut(text, EndTag)
	if _, after, found := strings.Cut(fixed, StartTag); found {
		fixed = after
	}
	return fixed
}

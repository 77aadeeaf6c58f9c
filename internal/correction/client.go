package correction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"github.com/quicktypofix/quicktypofix/internal/credential"
	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
)

// Sampling parameters sent with every request.
const (
	temperature      = 0.5
	topP             = 1.0
	frequencyPenalty = 0.0
	presencePenalty  = 0.0
)

const chatCompletionsPath = "chat/completions"

// Settings configure a Client. They are captured when the Client is created.
type Settings struct {
	Endpoint     string // full chat-completions URL, ex: "https://api.openai.com/v1/chat/completions"
	Model        string
	SystemPrompt string
}

// Client is a Service backed by an OpenAI-compatible chat-completions endpoint.
type Client struct {
	settings Settings
	keys     credential.Store

	// HTTPClient, if set, is used for requests instead of the SDK default.
	HTTPClient *http.Client
}

var _ Service = (*Client)(nil)

// NewClient returns a Client that reads its API key from keys (and the environment fallbacks) on every call.
func NewClient(settings Settings, keys credential.Store) *Client {
	return &Client{settings: settings, keys: keys}
}

// Settings returns the settings c was created with.
func (c *Client) Settings() Settings {
	return c.settings
}

// Correct sends line to the model and returns its corrected form. The result is never guaranteed to differ from line.
func (c *Client) Correct(ctx context.Context, line string) (string, error) {
	apiKey, err := credential.Lookup(c.keys)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return "", ErrCredentialMissing
		}
		return "", fmt.Errorf("%w: %w", ErrCredentialMissing, err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := baseURL(c.settings.Endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	client := openai.NewClient(opts...)

	request := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.settings.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMessage(c.settings.SystemPrompt)),
			openai.UserMessage(userMessage(line)),
		},
		Temperature:      openai.Float(temperature),
		TopP:             openai.Float(topP),
		FrequencyPenalty: openai.Float(frequencyPenalty),
		PresencePenalty:  openai.Float(presencePenalty),
	}

	simplelogger.Log("correction: sending request. model=%s input_tokens~%d", c.settings.Model, CountTokens(request.Messages))

	var httpResp *http.Response
	resp, err := client.Chat.Completions.New(ctx, request, option.WithResponseInto(&httpResp))
	if err != nil {
		return "", classifyError(err, httpResp)
	}
	if resp == nil {
		return "", malformedf("empty response")
	}

	content, err := validateResponse(resp.RawJSON())
	if err != nil {
		return "", err
	}

	fixed := strings.Trim(Extract(content), "\r\n")
	if strings.ContainsAny(fixed, "\r\n") {
		return "", malformedf("corrected text spans multiple lines: %q", fixed)
	}
	if fixed == "" && line != "" {
		return "", malformedf("corrected text is empty")
	}
	return fixed, nil
}

// baseURL derives the SDK base URL from a full chat-completions endpoint. An endpoint without the trailing path is used as-is.
func baseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	base := strings.TrimSuffix(strings.TrimSuffix(endpoint, "/"), chatCompletionsPath)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// validateResponse checks that raw has a non-empty string at choices[0].message.content and returns it.
func validateResponse(raw string) (string, error) {
	if raw == "" || !gjson.Valid(raw) {
		return "", malformedf("response is not JSON")
	}
	choices := gjson.Get(raw, "choices")
	if !choices.IsArray() {
		return "", malformedf("choices is not an array")
	}
	first := choices.Get("0")
	if !first.IsObject() {
		return "", malformedf("choices[0] is missing")
	}
	message := first.Get("message")
	if !message.IsObject() {
		return "", malformedf("choices[0].message is not an object")
	}
	content := message.Get("content")
	if content.Type != gjson.String {
		return "", malformedf("choices[0].message.content is not a string")
	}
	if content.String() == "" {
		return "", malformedf("choices[0].message.content is empty")
	}
	return content.String(), nil
}

func classifyError(err error, httpResp *http.Response) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", ErrTransport, apiErr.StatusCode, apiErr.Message)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return malformedf("%v", err)
	}

	if httpResp != nil && (httpResp.StatusCode < 200 || httpResp.StatusCode > 299) {
		return fmt.Errorf("%w: status %d: %w", ErrTransport, httpResp.StatusCode, err)
	}
	return transportError(err)
}

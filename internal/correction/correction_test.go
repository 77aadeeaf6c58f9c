package correction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/quicktypofix/quicktypofix/internal/credential"
)

const testPrompt = "You are a proofreader."

func completionBody(content string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`, content)
}

type fakeServer struct {
	*httptest.Server
	requests atomic.Int32
	lastBody atomic.Value // string
	lastAuth atomic.Value // string
	lastPath atomic.Value // string
}

func newFakeServer(t *testing.T, status int, body string) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		b, _ := io.ReadAll(r.Body)
		fs.lastBody.Store(string(b))
		fs.lastAuth.Store(r.Header.Get("Authorization"))
		fs.lastPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(fs *fakeServer) *Client {
	keys := &credential.Memory{}
	_ = keys.Store(credential.APIKeyID, "sk-test-key")
	return NewClient(Settings{Endpoint: fs.URL + "/v1/chat/completions", Model: "gpt-test", SystemPrompt: testPrompt}, keys)
}

func TestCorrect_Success(t *testing.T) {
	fs := newFakeServer(t, http.StatusOK, completionBody("<typoFixed>This is a sentence.</typoFixed>"))
	c := newTestClient(fs)

	fixed, err := c.Correct(context.Background(), "This is a sentnce.")
	require.NoError(t, err)
	assert.Equal(t, "This is a sentence.", fixed)
	assert.EqualValues(t, 1, fs.requests.Load())

	assert.Equal(t, "/v1/chat/completions", fs.lastPath.Load())
	assert.Equal(t, "Bearer sk-test-key", fs.lastAuth.Load())

	body := fs.lastBody.Load().(string)
	assert.Equal(t, "gpt-test", gjson.Get(body, "model").String())
	assert.Equal(t, 0.5, gjson.Get(body, "temperature").Float())
	assert.Equal(t, 1.0, gjson.Get(body, "top_p").Float())
	assert.True(t, gjson.Get(body, "frequency_penalty").Exists())
	assert.True(t, gjson.Get(body, "presence_penalty").Exists())

	msgs := gjson.Get(body, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, testPrompt+"\n\n"+outputInstructions, msgs[0].Get("content").String())
	assert.Equal(t, "user", msgs[1].Get("role").String())
	assert.Equal(t, "Fix typo: This is a sentnce.", msgs[1].Get("content").String())
}

func TestCorrect_NoTags(t *testing.T) {
	fs := newFakeServer(t, http.StatusOK, completionBody("Plain answer.\n"))
	fixed, err := newTestClient(fs).Correct(context.Background(), "Plain anser.")
	require.NoError(t, err)
	assert.Equal(t, "Plain answer.", fixed)
}

func TestCorrect_MultiLine(t *testing.T) {
	fs := newFakeServer(t, http.StatusOK, completionBody("<typoFixed>one\ntwo</typoFixed>"))
	_, err := newTestClient(fs).Correct(context.Background(), "one two")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCorrect_HTTPError(t *testing.T) {
	fs := newFakeServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	_, err := newTestClient(fs).Correct(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "401")
	assert.EqualValues(t, 1, fs.requests.Load(), "no retries")
}

func TestCorrect_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"id":"x","choices":[]}`},
		{"choices not array", `{"id":"x","choices":{}}`},
		{"no message", `{"id":"x","choices":[{"index":0}]}`},
		{"content number", `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":42}}]}`},
		{"content null", `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":null}}]}`},
		{"content empty", completionBody("")},
		{"empty correction", completionBody("<typoFixed></typoFixed>")},
		{"only newlines inside tags", completionBody("<typoFixed>\n</typoFixed>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t, http.StatusOK, tt.body)
			_, err := newTestClient(fs).Correct(context.Background(), "hello")
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestCorrect_Unreachable(t *testing.T) {
	fs := newFakeServer(t, http.StatusOK, completionBody("x"))
	c := newTestClient(fs)
	fs.Close()

	_, err := c.Correct(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestCorrect_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	keys := &credential.Memory{}
	_ = keys.Store(credential.APIKeyID, "sk-test-key")
	c := NewClient(Settings{Endpoint: srv.URL + "/v1/chat/completions", Model: "m"}, keys)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Correct(ctx, "hello")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestCorrect_CredentialMissing(t *testing.T) {
	for _, env := range credential.EnvFallbacks {
		t.Setenv(env[1:], "")
	}
	fs := newFakeServer(t, http.StatusOK, completionBody("x"))
	c := NewClient(Settings{Endpoint: fs.URL + "/v1/chat/completions", Model: "m"}, &credential.Memory{})

	_, err := c.Correct(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrCredentialMissing)
	assert.EqualValues(t, 0, fs.requests.Load())
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/", baseURL("https://api.openai.com/v1/chat/completions"))
	assert.Equal(t, "https://api.openai.com/v1/", baseURL("https://api.openai.com/v1/chat/completions/"))
	assert.Equal(t, "http://localhost:8080/", baseURL("http://localhost:8080"))
	assert.Equal(t, "", baseURL("  "))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<typoFixed>fixed</typoFixed>", "fixed"},
		{"preamble <typoFixed>fixed</typoFixed> trailer", "fixed"},
		{"fixed</typoFixed>", "fixed"},
		{"<typoFixed>fixed", "fixed"},
		{"fixed", "fixed"},
		{"<typoFixed>a</typoFixed><typoFixed>b</typoFixed>", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Extract(tt.in), "input %q", tt.in)
	}
}

func TestCountText(t *testing.T) {
	assert.Equal(t, 0, CountText(""))
	n := CountText("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 5)
	assert.Less(t, n, 20)
}

func TestMock(t *testing.T) {
	m := NewMock(map[string]string{"sentnce": "<typoFixed>This is a sentence.</typoFixed>"})

	fixed, err := m.Correct(context.Background(), "This is a sentnce.")
	require.NoError(t, err)
	assert.Equal(t, "This is a sentence.", fixed)

	fixed, err = m.Correct(context.Background(), "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "unrelated", fixed)

	assert.Equal(t, []string{"This is a sentnce.", "unrelated"}, m.Calls())
}

func TestMock_OverlappingKeysPickSortedFirst(t *testing.T) {
	m := NewMock(map[string]string{
		"teh":     "from teh",
		"abc":     "from abc",
		"zzz":     "from zzz",
		"teh cat": "from teh cat",
	})
	for range 20 {
		fixed, err := m.Correct(context.Background(), "abc teh cat zzz")
		require.NoError(t, err)
		assert.Equal(t, "from abc", fixed)
	}

	fixed, err := m.Correct(context.Background(), "teh cat")
	require.NoError(t, err)
	assert.Equal(t, "from teh", fixed)
}

func TestMock_FailingAndHold(t *testing.T) {
	boom := fmt.Errorf("%w: boom", ErrTransport)
	_, err := NewFailingMock(boom).Correct(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrTransport))

	m := NewMock(nil)
	release := m.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := m.Correct(context.Background(), "x")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("call returned before release")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	release()
	assert.NoError(t, <-done)
}

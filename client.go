package ollamacheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lyricat/goutils/structs"

	"github.com/ArnoChenFx/ollamacheck/chat"
	"github.com/ArnoChenFx/ollamacheck/internal/httputil"
)

// Client talks to one Ollama-compatible chat endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	out  io.Writer

	// sleep is swappable so retry tests don't actually wait.
	sleep func(time.Duration)
}

func New(cfg Config) *Client {
	return &Client{
		cfg:   cfg,
		http:  httputil.NewClient(cfg.Timeout()),
		out:   os.Stdout,
		sleep: time.Sleep,
	}
}

// SetOutput redirects retry and stream-decode notices. Defaults to stdout.
func (c *Client) SetOutput(w io.Writer) {
	if w != nil {
		c.out = w
	}
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) chatURL() string { return c.cfg.BaseURL() + "/api/chat" }

// Send POSTs payload to /api/chat. Transport failures (connection errors,
// timeouts) are retried up to max_retries with a fixed delay; the last
// attempt's error propagates. An HTTP error status is not a transport
// failure: the response is returned for the caller to inspect and is
// never retried.
func (c *Client) Send(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attempts := c.cfg.Server.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			fmt.Fprintf(c.out, "\nRequest failed, retrying in %d seconds: %v\n", c.cfg.Server.RetryDelaySeconds, lastErr)
			c.sleep(c.cfg.RetryDelay())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// ChatResponse is a decoded non-streaming /api/chat reply. Raw keeps the
// whole body for shape checks the typed fields can't express.
type ChatResponse struct {
	StatusCode int
	Model      string
	Message    chat.Message
	Raw        structs.JSONMap
}

// Chat sends a non-streaming request and decodes the whole body. The
// request's model falls back to the configured default when empty.
func (c *Client) Chat(ctx context.Context, req *chat.Request) (*ChatResponse, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.cfg.Server.Model
	}

	resp, err := c.Send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := httputil.ReadBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &ChatResponse{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(data, &out.Raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var typed struct {
		Model   string       `json:"model"`
		Message chat.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out.Model = typed.Model
	out.Message = typed.Message
	return out, nil
}

// ChatStream sends a streaming request and feeds each content fragment to
// fn as it arrives. A non-2xx status is an error; otherwise the body is
// handed to the stream decoder, which owns closing it.
func (c *Client) ChatStream(ctx context.Context, req *chat.Request, fn StreamHandler) (*StreamResult, error) {
	r := *req
	r.Stream = true
	if r.Model == "" {
		r.Model = c.cfg.Server.Model
	}

	resp, err := c.Send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := httputil.ReadBody(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	return decodeStream(resp.Body, fn, func([]byte) {
		fmt.Fprintln(c.out, "Error decoding JSON from response line")
	})
}

// ModelInfo is one entry of the /api/tags model list.
type ModelInfo struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
	Size  int64  `json:"size,omitempty"`
}

// Tags lists the models the server advertises on /api/tags.
func (c *Client) Tags(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL()+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := httputil.ReadBody(resp.Body)
		return nil, fmt.Errorf("tags request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return payload.Models, nil
}

package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyricat/goutils/structs"

	"github.com/ArnoChenFx/ollamacheck"
	"github.com/ArnoChenFx/ollamacheck/chat"
	"github.com/ArnoChenFx/ollamacheck/internal/diag"
	"github.com/ArnoChenFx/ollamacheck/internal/httputil"
)

// nonStreamChat checks the basic non-streaming call: the reply body must
// carry both the model and message keys.
func (r *Runner) nonStreamChat(ctx context.Context) error {
	req, err := chat.BuildRequest(r.Query)
	if err != nil {
		return err
	}

	resp, err := r.Client.Chat(ctx, req)
	if err != nil {
		return err
	}

	diag.Section(r.Out, r.Verbose, "Non-streaming call response")
	if err := requireChatShape(resp); err != nil {
		return err
	}
	diag.JSON(r.Out, r.Verbose, "Response content", map[string]any{
		"model":   resp.Model,
		"message": resp.Message,
	})
	return nil
}

// streamChat consumes a streaming reply, echoing each fragment as it
// arrives. The fragments themselves are printed even in quiet mode; only
// the banner is gated.
func (r *Runner) streamChat(ctx context.Context) error {
	req, err := chat.BuildRequest(r.StreamQuery, chat.WithStream(true))
	if err != nil {
		return err
	}

	diag.Section(r.Out, r.Verbose, "Streaming call response")
	_, err = r.Client.ChatStream(ctx, req, func(content string) error {
		fmt.Fprint(r.Out, content)
		return nil
	})
	fmt.Fprintln(r.Out)
	return err
}

// queryModes sweeps the retrieval-mode prefixes. The modes are opaque
// routing hints; each reply only has to keep the documented shape.
func (r *Runner) queryModes(ctx context.Context) error {
	for _, mode := range chat.Modes() {
		diag.Section(r.Out, r.Verbose, fmt.Sprintf("Testing /%s mode", mode))

		req, err := chat.BuildRequest(r.Query, chat.WithMode(mode))
		if err != nil {
			return err
		}
		resp, err := r.Client.Chat(ctx, req)
		if err != nil {
			return fmt.Errorf("mode /%s: %w", mode, err)
		}
		if err := requireChatShape(resp); err != nil {
			return fmt.Errorf("mode /%s: %w", mode, err)
		}
		diag.JSON(r.Out, r.Verbose, "", map[string]any{
			"model":   resp.Model,
			"message": resp.Message,
		})
	}
	return nil
}

// modelListing checks that the server advertises its emulated model on
// /api/tags, the discovery endpoint mounted next to /api/chat.
func (r *Runner) modelListing(ctx context.Context) error {
	models, err := r.Client.Tags(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	diag.JSON(r.Out, r.Verbose, "Available models", names)
	if len(models) == 0 {
		return fmt.Errorf("server advertises no models")
	}
	return nil
}

func (r *Runner) errorHandling(ctx context.Context) error {
	diag.Section(r.Out, r.Verbose, "Testing error handling")
	return r.runErrorCases(ctx, false)
}

func (r *Runner) streamErrorHandling(ctx context.Context) error {
	diag.Section(r.Out, r.Verbose, "Testing streaming response error handling")
	return r.runErrorCases(ctx, true)
}

type errorCase struct {
	name    string
	payload structs.JSONMap
}

// errorCases are the fixed malformed-request variants. The server must
// reject each one before any (streaming) body is produced.
func (r *Runner) errorCases(stream bool) []errorCase {
	model := r.Client.Config().Server.Model
	return []errorCase{
		{
			name: "empty_messages",
			payload: structs.JSONMap{
				"model":    model,
				"messages": []any{},
				"stream":   stream,
			},
		},
		{
			name: "invalid_role",
			payload: structs.JSONMap{
				"model": model,
				"messages": []any{
					map[string]any{"invalid_role": "user", "content": "Test message"},
				},
				"stream": stream,
			},
		},
		{
			name: "missing_content",
			payload: structs.JSONMap{
				"model": model,
				"messages": []any{
					map[string]any{"role": "user"},
				},
				"stream": stream,
			},
		},
	}
}

func (r *Runner) runErrorCases(ctx context.Context, stream bool) error {
	label := ""
	if stream {
		label = " (streaming)"
	}

	for _, tc := range r.errorCases(stream) {
		diag.Printf(r.Out, r.Verbose, "\n--- Testing %s%s ---\n", strings.ReplaceAll(tc.name, "_", " "), label)

		resp, err := r.Client.Send(ctx, tc.payload)
		if err != nil {
			return fmt.Errorf("%s: %w", tc.name, err)
		}

		fmt.Fprintf(r.Out, "Status code: %d\n", resp.StatusCode)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			httputil.DrainAndClose(resp.Body)
			return fmt.Errorf("%s: expected a non-2xx status, got %d", tc.name, resp.StatusCode)
		}

		body, readErr := httputil.ReadBody(resp.Body)
		resp.Body.Close()
		if readErr == nil {
			var detail structs.JSONMap
			if json.Unmarshal(body, &detail) == nil {
				diag.JSON(r.Out, r.Verbose, "Error message", detail)
			}
		}
	}
	return nil
}

func requireChatShape(resp *ollamacheck.ChatResponse) error {
	missing := make([]string, 0, 2)
	for _, key := range []string{"model", "message"} {
		if !resp.Raw.HasKey(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("response missing required keys: %s (status %d)", strings.Join(missing, ", "), resp.StatusCode)
	}
	return nil
}

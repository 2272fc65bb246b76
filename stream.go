package ollamacheck

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/lyricat/goutils/structs"

	"github.com/ArnoChenFx/ollamacheck/chat"
)

// StreamHandler is called once per non-empty content fragment, in line
// arrival order. Returning a non-nil error cancels the stream.
type StreamHandler func(content string) error

// StreamFrame is one parsed line of a streaming /api/chat body.
type StreamFrame struct {
	Model     string       `json:"model"`
	CreatedAt string       `json:"created_at"`
	Message   chat.Message `json:"message"`
	Done      *bool        `json:"done"`
}

// terminal reports whether the frame ends the stream. A frame without a
// done field counts as terminal; that matches the reference behavior and
// is deliberate.
func (f StreamFrame) terminal() bool {
	return f.Done == nil || *f.Done
}

// StreamResult summarizes a fully consumed stream.
type StreamResult struct {
	Content      string          // concatenation of every yielded fragment
	Deltas       int             // fragments yielded
	DecodeErrors int             // undecodable lines skipped
	Done         bool            // a terminal frame was seen
	Stats        structs.JSONMap // terminal statistics, nil when absent
}

// DecodeStream consumes a line-delimited JSON chat stream and yields each
// content fragment to fn as it arrives. The body is closed exactly once
// before DecodeStream returns, on every path. Undecodable lines are
// skipped and counted, never fatal; iteration stops at the first terminal
// frame or when the body ends.
func DecodeStream(body io.ReadCloser, fn StreamHandler) (*StreamResult, error) {
	return decodeStream(body, fn, nil)
}

func decodeStream(body io.ReadCloser, fn StreamHandler, onBadLine func(line []byte)) (res *StreamResult, err error) {
	defer body.Close()

	res = &StreamResult{}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame StreamFrame
		if jsonErr := json.Unmarshal(line, &frame); jsonErr != nil {
			res.DecodeErrors++
			if onBadLine != nil {
				onBadLine(line)
			}
			continue
		}

		if frame.terminal() {
			res.Done = true
			var stats structs.JSONMap
			if json.Unmarshal(line, &stats) == nil && stats.HasKey("total_duration") {
				res.Stats = stats
			}
			break
		}

		content := frame.Message.Content
		if content == "" {
			continue
		}
		res.Content += content
		res.Deltas++
		if fn != nil {
			if cbErr := fn(content); cbErr != nil {
				return res, cbErr
			}
		}
	}

	if scanErr := sc.Err(); scanErr != nil {
		return res, scanErr
	}
	return res, nil
}

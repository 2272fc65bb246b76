package ollamacheck

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func streamBody(lines ...string) *countingCloser {
	return &countingCloser{Reader: strings.NewReader(strings.Join(lines, "\n") + "\n")}
}

func TestDecodeStreamYieldsInOrder(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"he"},"done":false}`,
		`{"message":{"content":"llo"},"done":false}`,
		`{"done":true,"total_duration":5}`,
	)

	var deltas []string
	res, err := DecodeStream(body, func(content string) error {
		deltas = append(deltas, content)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 2 || deltas[0] != "he" || deltas[1] != "llo" {
		t.Fatalf("deltas mismatch: %v", deltas)
	}
	if res.Content != "hello" {
		t.Fatalf("content mismatch: got %q", res.Content)
	}
	if !res.Done {
		t.Fatal("terminal frame not detected")
	}
	if res.Stats == nil || !res.Stats.HasKey("total_duration") {
		t.Fatalf("statistics not captured: %+v", res.Stats)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamStopsAtTerminal(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"before"},"done":false}`,
		`{"done":true,"total_duration":1}`,
		`{"message":{"content":"after"},"done":false}`,
	)

	res, err := DecodeStream(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "before" {
		t.Fatalf("content after terminal frame was consumed: %q", res.Content)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamToleratesMalformedLines(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"a"},"done":false}`,
		`{not json at all`,
		``,
		`{"message":{"content":"b"},"done":false}`,
		`{"done":true,"total_duration":2}`,
	)

	var badLines int
	res, err := decodeStream(body, nil, func([]byte) { badLines++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "ab" {
		t.Fatalf("content mismatch: got %q", res.Content)
	}
	if res.DecodeErrors != 1 || badLines != 1 {
		t.Fatalf("decode errors: counted %d, notified %d, want 1/1", res.DecodeErrors, badLines)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamMissingDoneIsTerminal(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"x"},"done":false}`,
		`{"message":{"content":"never seen"}}`,
		`{"message":{"content":"unreached"},"done":false}`,
	)

	res, err := DecodeStream(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "x" {
		t.Fatalf("content mismatch: got %q", res.Content)
	}
	if !res.Done {
		t.Fatal("frame without done field should be terminal")
	}
	if res.Stats != nil {
		t.Fatalf("no statistics expected, got %+v", res.Stats)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamDoneWithoutStatsIsTerminal(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"x"},"done":false}`,
		`{"done":true}`,
	)

	res, err := DecodeStream(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Done || res.Stats != nil {
		t.Fatalf("want terminal without stats, got done=%v stats=%+v", res.Done, res.Stats)
	}
}

func TestDecodeStreamSkipsEmptyContent(t *testing.T) {
	body := streamBody(
		`{"message":{"content":""},"done":false}`,
		`{"message":{"content":"only"},"done":false}`,
		`{"done":true,"total_duration":1}`,
	)

	calls := 0
	res, err := DecodeStream(body, func(string) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || res.Deltas != 1 || res.Content != "only" {
		t.Fatalf("empty fragment was yielded: calls=%d deltas=%d content=%q", calls, res.Deltas, res.Content)
	}
}

func TestDecodeStreamCallbackErrorCancels(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"a"},"done":false}`,
		`{"message":{"content":"b"},"done":false}`,
		`{"done":true,"total_duration":1}`,
	)

	wantErr := errors.New("stop")
	var deltas []string
	res, err := DecodeStream(body, func(content string) error {
		deltas = append(deltas, content)
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("callback error not propagated: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("stream not cancelled after callback error: %v", deltas)
	}
	if res == nil || res.Content != "a" {
		t.Fatalf("partial result missing: %+v", res)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

type failingReader struct {
	data io.Reader
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func TestDecodeStreamReadErrorPropagatesAfterClose(t *testing.T) {
	readErr := errors.New("connection reset")
	body := &countingCloser{Reader: &failingReader{
		data: strings.NewReader(`{"message":{"content":"part"},"done":false}` + "\n"),
		err:  readErr,
	}}

	res, err := DecodeStream(body, nil)
	if !errors.Is(err, readErr) {
		t.Fatalf("read error not propagated: %v", err)
	}
	if res.Content != "part" {
		t.Fatalf("fragments before the failure should be kept: %q", res.Content)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamExhaustionWithoutTerminal(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"a"},"done":false}`,
		`{"message":{"content":"b"},"done":false}`,
	)

	res, err := DecodeStream(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Done {
		t.Fatal("no terminal frame was sent")
	}
	if res.Content != "ab" {
		t.Fatalf("content mismatch: %q", res.Content)
	}
	if body.closes != 1 {
		t.Fatalf("body closed %d times, want 1", body.closes)
	}
}

func TestDecodeStreamManyFragmentsConcatenate(t *testing.T) {
	lines := make([]string, 0, 51)
	want := strings.Builder{}
	for i := 0; i < 50; i++ {
		fragment := fmt.Sprintf("chunk-%02d ", i)
		want.WriteString(fragment)
		lines = append(lines, fmt.Sprintf(`{"message":{"content":"%s"},"done":false}`, fragment))
	}
	lines = append(lines, `{"done":true,"total_duration":42}`)

	res, err := DecodeStream(streamBody(lines...), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != want.String() {
		t.Fatalf("concatenation mismatch: got %d bytes, want %d", len(res.Content), want.Len())
	}
	if res.Deltas != 50 {
		t.Fatalf("deltas mismatch: %d", res.Deltas)
	}
}

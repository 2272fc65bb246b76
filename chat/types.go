package chat

import (
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Retrieval modes recognized by the server. They are routing hints
// forwarded verbatim as a "/{mode} " query prefix, never interpreted here.
const (
	ModeLocal  = "local"
	ModeGlobal = "global"
	ModeNaive  = "naive"
	ModeHybrid = "hybrid"
	ModeMix    = "mix"
)

func Modes() []string {
	return []string{ModeLocal, ModeGlobal, ModeNaive, ModeHybrid, ModeMix}
}

type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type Option func(*Request) error

// BuildRequest produces a single user-message chat request for the given
// query text. Model may be left empty; the client fills in its configured
// default before sending.
func BuildRequest(query string, opts ...Option) (*Request, error) {
	req := &Request{
		Messages: []Message{User(query)},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func WithModel(model string) Option {
	return func(r *Request) error {
		r.Model = model
		return nil
	}
}

func WithStream(stream bool) Option {
	return func(r *Request) error {
		r.Stream = stream
		return nil
	}
}

// WithMode prepends the "/{mode} " routing prefix to the user message.
func WithMode(mode string) Option {
	return func(r *Request) error {
		mode = strings.ToLower(strings.TrimSpace(mode))
		known := false
		for _, m := range Modes() {
			if m == mode {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown retrieval mode %q (supported: %s)", mode, strings.Join(Modes(), ", "))
		}
		if len(r.Messages) == 0 {
			return fmt.Errorf("mode prefix requires a message")
		}
		r.Messages[0].Content = "/" + mode + " " + r.Messages[0].Content
		return nil
	}
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

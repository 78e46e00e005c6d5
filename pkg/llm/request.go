package llm

import (
	"github.com/go-errors/errors"
)

type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// Valid reports whether r may appear in a fine-tuning example.
func (r Role) Valid() bool {
	return r == UserRole || r == AssistantRole
}

type Request struct {
	Messages      []Message      `json:"messages"`
	Model         string         `json:"model,omitempty"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     int64          `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamChannel chan *Response `json:"-"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: UserRole, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: SystemRole, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: AssistantRole, Content: content}
}

type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int64   `json:"index"`
	Delta        Message `json:"delta"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

var ErrNoChoices = errors.Errorf("response has no choices")

// Content returns the first choice's message.
func (r Response) Content() (string, error) {
	if len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}

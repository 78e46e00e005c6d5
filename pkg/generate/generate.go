// Package generate asks a fine-tuned model for macro documents.
package generate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ellypaws/macrotune/pkg/cache"
	"github.com/ellypaws/macrotune/pkg/llm"
	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/macro"
	"github.com/ellypaws/macrotune/pkg/schema"
)

// DefaultSystem is the instruction the web front end sends with every prompt.
const DefaultSystem = "You are a macro generation assistant. Generate valid macro JSON based on user prompts."

var (
	ErrMissingModel = goerrors.Errorf("a fine-tuned model name is required")
	ErrInvalidJSON  = goerrors.Errorf("model response is not valid JSON")
	ErrUnknownModel = goerrors.Errorf("model is not available to this API key")
)

// Inferrer is satisfied by *llm.Client. Streaming requests must have their
// StreamChannel closed before Infer returns.
type Inferrer interface {
	Infer(ctx context.Context, request *llm.Request) (llm.Response, error)
}

// ModelLister is satisfied by *llm.Client.
type ModelLister interface {
	AvailableModels(ctx context.Context) ([]string, error)
}

// CheckModel makes sure the API lists model before any prompt is sent.
func CheckModel(ctx context.Context, lister ModelLister, model string) error {
	if model == "" {
		return ErrMissingModel
	}
	models, err := lister.AvailableModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if !slices.Contains(models, model) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return nil
}

type Generator struct {
	Client Inferrer
	Model  string
	// System is sent as a system message when not empty.
	System string

	// Cache holds replies by model, system prompt and user prompt. Replies are
	// requested at temperature 0 so a cached reply stands in for a new one.
	Cache cache.Cache
	TTL   time.Duration

	// Validator checks replies against the inferred schema when set.
	Validator *schema.Validator

	// Stream receives the reply text piece by piece as the model writes it.
	// Cached replies are not streamed.
	Stream func(chunk string)

	Log logger.Logger
}

type Result struct {
	Prompt string `json:"prompt"`
	// Raw is the reply exactly as the model produced it.
	Raw    string `json:"-"`
	Macro  any    `json:"macro"`
	Cached bool   `json:"cached"`

	Validated bool   `json:"validated"`
	Valid     bool   `json:"valid"`
	Problem   string `json:"problem,omitempty"`
}

// Macro sends prompt as a single user message and parses the reply. A reply
// that is not JSON returns ErrInvalidJSON with the raw text in the message.
func (g *Generator) Macro(ctx context.Context, prompt string) (*Result, error) {
	log := logger.OrDiscard(g.Log)
	if g.Model == "" {
		return nil, ErrMissingModel
	}

	key := cache.Key("macro", g.Model, g.System, prompt)
	raw, cached := g.lookup(ctx, key)
	if !cached {
		var err error
		raw, err = g.infer(ctx, prompt)
		if err != nil {
			log.Errorf("Error getting macro: %v", err)
			return nil, err
		}
	}

	value, err := macro.Decode([]byte(raw))
	if err != nil {
		log.Errorf("Error: Model response is not valid JSON")
		log.Errorf("Raw response: %s", raw)
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, raw)
	}

	if !cached && g.Cache != nil {
		if err := g.Cache.Set(ctx, key, cache.NewItem([]byte(raw), echo.MIMEApplicationJSON), g.TTL); err != nil {
			log.Warnf("could not cache reply for %q: %v", prompt, err)
		}
	}

	result := &Result{Prompt: prompt, Raw: raw, Macro: value, Cached: cached}
	if g.Validator != nil {
		result.Validated = true
		result.Valid, result.Problem = g.Validator.Validate(value)
		if !result.Valid {
			log.Warnf("macro for %q does not match the schema: %s", prompt, result.Problem)
		}
	}
	return result, nil
}

func (g *Generator) lookup(ctx context.Context, key string) (string, bool) {
	if g.Cache == nil {
		return "", false
	}
	item, err := g.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.OrDiscard(g.Log).Warnf("could not get %s from cache %T: %v", key, g.Cache, err)
		}
		return "", false
	}
	return string(item.Blob), true
}

func (g *Generator) infer(ctx context.Context, prompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if g.System != "" {
		messages = append(messages, llm.SystemMessage(g.System))
	}
	messages = append(messages, llm.UserMessage(prompt))

	request := &llm.Request{
		Model:       g.Model,
		Messages:    messages,
		Temperature: 0,
	}
	if g.Stream == nil {
		response, err := g.Client.Infer(ctx, request)
		if err != nil {
			return "", err
		}
		return response.Content()
	}

	request.Stream = true
	request.StreamChannel = make(chan *llm.Response)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range request.StreamChannel {
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				g.Stream(chunk.Choices[0].Delta.Content)
			}
		}
	}()

	response, err := g.Client.Infer(ctx, request)
	<-done
	if err != nil {
		return "", err
	}
	return response.Content()
}

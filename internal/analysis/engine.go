package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/clausewise-backend/pkg/llm"
)

// Request is one analysis call. Model selects the engine tier; empty uses the
// engine default.
type Request struct {
	Text  string
	Model string
}

// Engine produces an untrusted analysis of contract text.
type Engine interface {
	Analyze(ctx context.Context, req Request) (*RawAnalysis, error)
}

// ChatCompleter is the subset of the LLM client used by LLMEngine.
type ChatCompleter interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// LLMEngineParams configure the LLM-backed engine.
type LLMEngineParams struct {
	Client   ChatCompleter
	MaxChars int
	// JSONMode requests a json_object response format from models that support it.
	JSONMode bool
}

// LLMEngine analyzes contracts through a chat completion model.
type LLMEngine struct {
	client   ChatCompleter
	maxChars int
	jsonMode bool
}

// NewLLMEngine builds an LLMEngine.
func NewLLMEngine(params LLMEngineParams) (*LLMEngine, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("llm client required")
	}
	return &LLMEngine{client: params.Client, maxChars: params.MaxChars, jsonMode: params.JSONMode}, nil
}

func (e *LLMEngine) Analyze(ctx context.Context, req Request) (*RawAnalysis, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	out, err := e.client.Complete(ctx, llm.ChatRequest{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(truncate(text, e.maxChars))},
		},
		JSONMode: e.jsonMode,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion: %w", err)
	}
	return ParseRaw(out)
}

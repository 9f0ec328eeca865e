package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
// The engine treats it as a black box; it is consumed by callers such as the
// CLI, never by the retrieval core.
type Completer struct {
	llm    *openai.LLM
	logger *slog.Logger
}

// NewCompleter creates a completion client bound to the given credential.
func NewCompleter(config *ai.Config, credential string) (ai.Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, core.ErrCredentialRequired
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(credential),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, classifyError(err)
	}

	return &Completer{
		llm:    llm,
		logger: slog.Default().With("component", "openai-completer"),
	}, nil
}

// Complete generates a text continuation for the given prompt.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("generating completion", "promptLength", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		c.logger.Error("completion failed", "err", err)
		return "", classifyError(err)
	}
	return text, nil
}

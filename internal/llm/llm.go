package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wine-cellar/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Fallback tries each generator in order and returns the first success.
type Fallback struct {
	generators []TextGenerator
	logger     *zap.Logger
}

// NewFallback creates a Fallback. Nil generators are skipped.
func NewFallback(logger *zap.Logger, generators ...TextGenerator) *Fallback {
	f := &Fallback{logger: logger}
	for _, g := range generators {
		if g != nil {
			f.generators = append(f.generators, g)
		}
	}
	return f
}

// GenerateContent implements TextGenerator.
func (f *Fallback) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if len(f.generators) == 0 {
		return ContentResponse{}, errors.New("no text generator configured")
	}

	var errs []error
	for i, g := range f.generators {
		resp, err := g.GenerateContent(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return ContentResponse{}, ctx.Err()
		}
		f.logger.Warn("text generator failed, trying next", zap.Int("generator", i), zap.Error(err))
		errs = append(errs, err)
	}
	return ContentResponse{}, fmt.Errorf("all text generators failed: %w", errors.Join(errs...))
}

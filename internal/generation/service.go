// Package generation turns practice requests into prompts for a completion
// backend and parses the replies into question, hint, solution, evaluation
// and explanation text.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/kata/internal/llm"
)

// Completer is the part of llm.Registry the service needs.
type Completer interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Service generates practice content
type Service struct {
	llm         Completer
	prompter    *Prompter
	temperature float64
	maxTokens   int
}

// Option configures a Service.
type Option func(*Service)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(s *Service) { s.maxTokens = n }
}

// NewService creates a new generation service
func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		llm:         completer,
		prompter:    NewPrompter(),
		temperature: 0.4,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateRequest describes a question to produce. When Question is set
// the learner wrote it and only a hint and solution are generated.
type GenerateRequest struct {
	Topic      string
	Question   string
	Language   string
	Difficulty string
}

// Generate produces a question with hint and solution, or only hint and
// solution for a learner-written question.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Content, error) {
	kind := KindQuestion
	prompt := s.prompter.QuestionPrompt(req.Topic, req.Language, req.Difficulty)
	if req.Question != "" {
		kind = KindHintSolution
		prompt = s.prompter.HintSolutionPrompt(req.Question, req.Language)
	}

	text, err := s.complete(ctx, kind, prompt)
	if err != nil {
		return nil, err
	}

	content, err := ParseContent(text, req.Question != "")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", kind, err)
	}
	return content, nil
}

// Evaluate reviews learner code against the reference solution.
func (s *Service) Evaluate(ctx context.Context, language, reference, learner string) (*Evaluation, error) {
	text, err := s.complete(ctx, KindEvaluation, s.prompter.EvaluationPrompt(language, reference, learner))
	if err != nil {
		return nil, err
	}

	eval, err := ParseEvaluation(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", KindEvaluation, err)
	}
	return eval, nil
}

// Explain returns code annotated with explanatory comments.
func (s *Service) Explain(ctx context.Context, language, code string) (string, error) {
	return s.annotate(ctx, KindExplanation, s.prompter.ExplainPrompt(language, code))
}

// ExplainSelection returns a fragment annotated with explanatory comments.
func (s *Service) ExplainSelection(ctx context.Context, language, fragment string) (string, error) {
	return s.annotate(ctx, KindSelection, s.prompter.SelectionPrompt(language, fragment))
}

func (s *Service) annotate(ctx context.Context, kind Kind, prompt string) (string, error) {
	text, err := s.complete(ctx, kind, prompt)
	if err != nil {
		return "", err
	}
	out := StripFences(text)
	if out == "" {
		return "", fmt.Errorf("parse %s: %w", kind, ErrMalformedResponse)
	}
	return out, nil
}

func (s *Service) complete(ctx context.Context, kind Kind, prompt string) (string, error) {
	req := llm.Prompt(s.prompter.SystemPrompt(kind), prompt)
	req.Temperature = s.temperature
	req.MaxTokens = s.maxTokens

	start := time.Now()
	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	slog.Debug("generation complete",
		"kind", kind.String(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", time.Since(start))

	return resp.Content, nil
}

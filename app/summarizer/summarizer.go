package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// MaxInputChars is the input budget; longer text is cut silently.
const MaxInputChars = 12000

const systemPrompt = `You are the host of a short daily audio briefing. Rewrite the article you are given as a spoken summary.

Rules:
- Speak directly to the listener in the second person ("you").
- Keep the tone energetic and warm, as if telling a friend about something great you just read.
- Explain what happened and why it matters to the listener.
- Credit the original author and publication by name when they are known.
- Close with a one-sentence call to action inviting the listener to read the full piece.
- Use only facts that appear in the article. Never invent names, numbers, quotes or events.
- Write flowing prose only. No lists, bullets, headings, markdown or emoji.
- Aim for roughly 150 to 250 words.`

var ErrEmptyCompletion = errors.New("summarizer returned an empty completion")

type completeFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

type Summarizer struct {
	complete    completeFunc
	model       string
	temperature float64
	timeout     time.Duration
}

// New builds a summarizer for an OpenAI-compatible chat completion API.
// Client-level retries are disabled; a failed job stays failed.
func New(apiKey, baseURL, model string, timeout time.Duration) *Summarizer {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Summarizer{
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return client.Chat.Completions.New(ctx, params)
		},
		model:       model,
		temperature: 0.7,
		timeout:     timeout,
	}
}

// WithTemperature overrides the sampling temperature. Negative values are ignored.
func (s *Summarizer) WithTemperature(t float64) *Summarizer {
	if t >= 0 {
		s.temperature = t
	}
	return s
}

// Summarize returns a narrated-style summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	input := Truncate(strings.TrimSpace(text), MaxInputChars)
	if input == "" {
		return "", fmt.Errorf("nothing to summarize")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := s.complete(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(input),
		},
		Model:       openai.ChatModel(s.model),
		Temperature: openai.Float(s.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	summary := strings.TrimSpace(completion.Choices[0].Message.Content)
	if summary == "" {
		return "", ErrEmptyCompletion
	}

	slog.Debug("Summary generated",
		"model", s.model,
		"input_chars", len([]rune(input)),
		"summary_chars", len([]rune(summary)),
		"duration", time.Since(start))

	return summary, nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

package ai

import (
	"context"
	"strings"
)

// Runtime is a minimal interface implemented by chat backends such as
// OpenRouter, OpenAI and local runtimes (Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// StreamRuntime is an optional extension that supports streaming output.
// Implementors should invoke onDelta with each partial content chunk.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)

// NormalizeProvider lowercases name and maps aliases to registered names.
func NormalizeProvider(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "or":
		return ProviderOpenRouter
	case ProviderLocal:
		return ProviderOllama
	}
	return n
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reply

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
)

// rephrasePrompt instructs the model to vary tone without touching facts.
const rephrasePrompt = "Eres el asistente de transferencias de dinero de un banco colombiano. " +
	"Reformula el siguiente mensaje con un tono cálido y natural, en español. " +
	"No cambies ningún número, monto, teléfono, identificador ni motivo de rechazo. " +
	"No agregues información nueva. Responde solo con el mensaje reformulado."

// Generator produces text from a prompt. Implemented by OpenAIGenerator;
// faked in tests.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIGenerator calls the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator from the environment.
//
// # Description
//
// Reads OPENAI_API_KEY from the environment, falling back to the Podman
// secret at /run/secrets/openai_api_key. OPENAI_MODEL selects the model,
// defaulting to gpt-4o-mini.
func NewOpenAIGenerator() (*OpenAIGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client for reply generation", "model", model)
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate implements the Generator interface.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// LLMResponder rephrases template replies through an LLM.
//
// # Description
//
// The template text is the source of truth; the LLM only adjusts tone. Any
// generation failure, empty response, or response that drops a factual
// value falls back to the template verbatim, so a broken or unreachable
// LLM never blocks a transfer dialogue.
type LLMResponder struct {
	generator Generator
	fallback  *TemplateResponder
}

// NewLLMResponder wraps a generator with template fallback.
func NewLLMResponder(generator Generator) *LLMResponder {
	return &LLMResponder{
		generator: generator,
		fallback:  NewTemplateResponder(),
	}
}

// Reply renders the outcome via the LLM, falling back to the template.
func (r *LLMResponder) Reply(ctx context.Context, outcome agent.Outcome) (string, error) {
	template, _ := r.fallback.Reply(ctx, outcome)

	generated, err := r.generator.Generate(ctx, rephrasePrompt, template)
	if err != nil {
		slog.Warn("reply generation failed, using template", "error", err)
		return template, nil
	}
	generated = strings.TrimSpace(generated)
	if generated == "" || !carriesFacts(generated, outcome) {
		slog.Warn("generated reply dropped factual content, using template",
			"outcome", outcome.Kind)
		return template, nil
	}
	return generated, nil
}

// carriesFacts checks that the generated text still contains the values
// the user must see.
func carriesFacts(text string, outcome agent.Outcome) bool {
	switch outcome.Kind {
	case agent.OutcomeAwaitingConfirmation, agent.OutcomeExecuted:
		if outcome.Phone != "" && !strings.Contains(text, outcome.Phone) {
			return false
		}
	}
	if outcome.TransactionID != "" && outcome.Kind == agent.OutcomeExecuted &&
		!strings.Contains(text, outcome.TransactionID) {
		return false
	}
	return true
}

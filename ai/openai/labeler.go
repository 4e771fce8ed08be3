// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/lexis/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	labelAttempts = 3
	maxLabelRunes = 40
)

var errEmptyLabel = errors.New("labeler returned an empty name")

// DomainLabeler implements ai.DomainLabeler using OpenAI-compatible chat APIs.
type DomainLabeler struct {
	client llms.Model
	logger *slog.Logger
}

// label is the LLM's JSON response.
type label struct {
	Name string `json:"name"`
}

// newDomainLabeler is an internal constructor that returns the concrete type.
func newDomainLabeler(config *ai.Config) (*DomainLabeler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.LabelerHost),
		openai.WithToken("none"),
		openai.WithModel(config.LabelerModel),
	)
	if err != nil {
		return nil, err
	}

	return &DomainLabeler{
		client: client,
		logger: slog.Default().With("component", "openai-labeler"),
	}, nil
}

// NewDomainLabeler creates a new domain labeler using the provided configuration.
//
// Returns ai.DomainLabeler interface to enforce abstraction.
func NewDomainLabeler(config *ai.Config) (ai.DomainLabeler, error) {
	return newDomainLabeler(config)
}

// LabelDomain asks the model for a short name describing samples.
func (l *DomainLabeler) LabelDomain(ctx context.Context, samples []string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(samples))},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var lastErr error
	for attempt := 0; attempt < labelAttempts; attempt++ {
		response, err := l.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			l.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return "", err
		}
		if len(response.Choices) < 1 {
			lastErr = errEmptyLabel
			continue
		}

		name, err := parseLabel(response.Choices[0].Content)
		if err != nil {
			lastErr = err
			l.logger.Warn("error parsing labeler response",
				"attempt", attempt+1,
				"response", response.Choices[0].Content,
				"err", err)
			continue
		}
		return name, nil
	}

	l.logger.Error("failed to label domain after retries", "err", lastErr)
	return "", lastErr
}

// parseLabel strips code fences, repairs and decodes the response, and
// trims the name to maxLabelRunes.
func parseLabel(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = repairJSON(strings.TrimSpace(text))

	var result label
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return "", err
	}

	name := strings.Join(strings.Fields(result.Name), " ")
	if name == "" {
		return "", errEmptyLabel
	}
	if r := []rune(name); len(r) > maxLabelRunes {
		name = strings.TrimSpace(string(r[:maxLabelRunes]))
	}
	return name, nil
}

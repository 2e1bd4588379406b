// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file contains general-purpose helpers: hierarchical configuration
// loading and the instrumented multi-modal model call shared by the commands.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable naming the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable naming the runtime (e.g., "local", "test", "prod").
	MaxRetries          = 3                   // Retries of a failed model call.
)

// ErrEmptyModelResponse is returned when a model answers without any text.
var ErrEmptyModelResponse = errors.New("model returned no text")

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes the base configuration file and then the
// runtime-specific override into baseConfig. With GCP_CONFIG_PREFIX=configs
// and GCP_RUNTIME=local it reads configs/.env.toml followed by
// configs/.env.local.toml. Missing files are skipped; the runtime defaults to
// "test".
func LoadConfig(baseConfig interface{}) error {
	prefix := os.Getenv(EnvConfigFilePrefix)
	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := filepath.Join(prefix, ConfigFileBaseName+ConfigFileExtension)
	envConfigFileName := filepath.Join(prefix, ConfigFileBaseName+ConfigSeparator+runtimeEnvironment+ConfigFileExtension)

	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Info("loaded configuration file", "file", name)
	}
	return nil
}

// ModelCounters are the token usage counters recorded for one caller.
type ModelCounters struct {
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
}

// NewModelCounters creates `<name>.gemini.token.input` and
// `<name>.gemini.token.output` on meter.
func NewModelCounters(meter metric.Meter, name string) ModelCounters {
	in, err := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	if err != nil {
		slog.Warn("error creating input token counter", "name", name, "error", err)
	}
	out, err := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	if err != nil {
		slog.Warn("error creating output token counter", "name", name, "error", err)
	}
	return ModelCounters{InputTokens: in, OutputTokens: out}
}

// Generation is the text of a model answer and its token usage.
type Generation struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// GenerateMultiModalResponse sends contents to model, records token usage and
// returns the concatenated text of all candidates with any Markdown code fence
// removed. A response without text is an ErrEmptyModelResponse.
func GenerateMultiModalResponse(ctx context.Context, counters ModelCounters, model GenerativeModel, contents []*genai.Content) (*Generation, error) {
	resp, err := model.GenerateContent(ctx, contents)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrEmptyModelResponse
	}

	out := &Generation{}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		if counters.InputTokens != nil {
			counters.InputTokens.Add(ctx, int64(out.PromptTokens))
		}
		if counters.OutputTokens != nil {
			counters.OutputTokens.Add(ctx, int64(out.OutputTokens))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	out.Text = StripCodeFence(sb.String())
	if out.Text == "" {
		return nil, ErrEmptyModelResponse
	}
	return out, nil
}

// StripCodeFence removes a surrounding ```json (or bare ```) fence.
func StripCodeFence(in string) string {
	value := strings.TrimSpace(in)
	if strings.HasPrefix(value, "```") {
		value = strings.TrimPrefix(value, "```json")
		value = strings.TrimPrefix(value, "```")
		value = strings.TrimSuffix(value, "```")
	}
	return strings.TrimSpace(value)
}

// NewTextPart creates a text part.
func NewTextPart(in string) *genai.Part {
	return &genai.Part{Text: in}
}

// NewFileData creates a part that references a stored file by URI.
func NewFileData(in string, mimeType string) *genai.Part {
	return &genai.Part{FileData: &genai.FileData{FileURI: in, MIMEType: mimeType}}
}

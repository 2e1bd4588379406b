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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// summarizer: the first model call of the analysis pipeline.
//
// Logic Flow:
//  1. Reads the Media from the context; its MediaUrl references the stored
//     source object, which the model reads directly.
//  2. Renders the prompt template with the category list, an example of the
//     expected JSON (few-shot prompting) and the media URL.
//  3. Sends the file reference and the prompt in one multi-modal request.
//  4. Stores the model's JSON text for MediaSummaryJsonToStruct to parse.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"google.golang.org/genai"
)

// DefaultMediaMIMEType is sent with the file reference when the trigger did
// not carry a content type.
const DefaultMediaMIMEType = "video/mp4"

// MediaSummaryCreator uses a generative model to summarize a media file and
// extract its metadata and scene timestamps.
type MediaSummaryCreator struct {
	cor.BaseCommand
	config   *cloud.Config         // Application configuration, used for prompt templating.
	model    cloud.GenerativeModel // The rate-limited generative model client.
	template *template.Template    // The Go template for building the prompt.
	counters cloud.ModelCounters
	mediaKey cor.Key[*model.Media]
	outKey   cor.Key[string]
}

// NewMediaSummaryCreator is the constructor for the MediaSummaryCreator command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - config: The application's configuration object.
//   - generativeAIModel: The rate-limited wrapper for the generative model client.
//   - template: A parsed Go template for the prompt.
//   - mediaKey, outKey: Where the Media is read and the summary JSON is written.
//
// Outputs:
//   - *MediaSummaryCreator: The command, including its token counters.
func NewMediaSummaryCreator(
	name string,
	config *cloud.Config,
	generativeAIModel cloud.GenerativeModel,
	template *template.Template,
	mediaKey cor.Key[*model.Media],
	outKey cor.Key[string]) *MediaSummaryCreator {

	out := &MediaSummaryCreator{
		BaseCommand: *cor.NewBaseCommand(name),
		config:      config,
		model:       generativeAIModel,
		template:    template,
		mediaKey:    mediaKey,
		outKey:      outKey,
	}
	out.counters = cloud.NewModelCounters(out.GetMeter(), name)
	return out
}

// GenerateParams creates the data injected into the prompt template.
func (t *MediaSummaryCreator) GenerateParams(media *model.Media) map[string]interface{} {
	params := make(map[string]interface{})
	params["CATEGORIES"] = CategoryList(t.config)

	exampleSummary, _ := json.Marshal(model.GetExampleSummary())
	params["EXAMPLE_JSON"] = string(exampleSummary)
	params["MEDIA_URL"] = media.MediaUrl
	return params
}

func (t *MediaSummaryCreator) IsExecutable(context cor.Context) bool {
	return t.mediaKey.Present(context)
}

func (t *MediaSummaryCreator) Execute(context cor.Context) error {
	media, ok := t.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", t.mediaKey.Name())
	}

	var buffer bytes.Buffer
	if err := t.template.Execute(&buffer, t.GenerateParams(media)); err != nil {
		return fmt.Errorf("failed to execute prompt template: %w", err)
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			cloud.NewFileData(media.MediaUrl, mimeTypeOf(context)),
			cloud.NewTextPart(buffer.String()),
		},
	}}

	out, err := cloud.GenerateMultiModalResponse(context.GetContext(), t.counters, t.model, contents)
	if err != nil {
		return fmt.Errorf("summary request for %s failed: %w", media.MediaUrl, err)
	}

	t.outKey.Set(context, out.Text)
	return nil
}

// CategoryList renders the configured categories as "key - definition; ..."
// in key order so the prompt is stable between runs.
func CategoryList(config *cloud.Config) string {
	keys := make([]string, 0, len(config.Categories))
	for key := range config.Categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("%s - %s; ", key, config.Categories[key].Definition))
	}
	return sb.String()
}

func mimeTypeOf(context cor.Context) string {
	if obj, ok := GCSObjectKey.Get(context); ok && obj != nil && obj.MIMEType != "" {
		return obj.MIMEType
	}
	return DefaultMediaMIMEType
}

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
// SceneExtractor, which writes a detailed script for every scene of a Media.
//
// Logic Flow:
// The assembler has already created one Scene per timestamp the summarizer
// found. Each scene needs its own model call, so the calls are fanned out over
// a bounded group of workers.
//
//  1. Builds a text rendering of the summary (title, summary, cast) that gives
//     every scene prompt the same context.
//  2. Starts an errgroup limited to the configured number of workers.
//  3. For every scene: renders the prompt (sequence, time span, summary,
//     example JSON, media URL), opens a child span and calls the model with
//     the media file reference.
//  4. The answer is decoded as a Scene JSON document when possible, otherwise
//     its raw text becomes the script.
//  5. The first failure cancels the group's context, so scenes not yet sent
//     are abandoned and the command fails with that error.
package commands

import (
	"bytes"
	goctx "context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// SceneExtractor generates a script for each Scene of the Media.
type SceneExtractor struct {
	cor.BaseCommand
	model           cloud.GenerativeModel // The rate-limited generative model client.
	promptTemplate  *template.Template    // The Go template for generating the scene-specific prompt.
	numberOfWorkers int                   // Upper bound on concurrent model calls.
	counters        cloud.ModelCounters
	mediaKey        cor.Key[*model.Media]
}

// NewSceneExtractor is the constructor for the SceneExtractor command.
//
// Inputs:
//   - name: The name of the command instance.
//   - model: The rate-limited generative model client.
//   - prompt: The parsed prompt template for scene extraction.
//   - numberOfWorkers: The number of concurrent model calls; values below 1 mean 1.
//   - mediaKey: The context key of the Media whose scenes are scripted.
func NewSceneExtractor(
	name string,
	model cloud.GenerativeModel,
	prompt *template.Template,
	numberOfWorkers int,
	mediaKey cor.Key[*model.Media]) *SceneExtractor {

	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	out := &SceneExtractor{
		BaseCommand:     *cor.NewBaseCommand(name),
		model:           model,
		promptTemplate:  prompt,
		numberOfWorkers: numberOfWorkers,
		mediaKey:        mediaKey,
	}
	out.counters = cloud.NewModelCounters(out.GetMeter(), name)
	return out
}

// IsExecutable requires the Media whose scenes are scripted.
func (s *SceneExtractor) IsExecutable(context cor.Context) bool {
	return s.mediaKey.Present(context)
}

func (s *SceneExtractor) Execute(context cor.Context) error {
	media, ok := s.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", s.mediaKey.Name())
	}
	if len(media.Scenes) == 0 {
		return nil
	}

	exampleJson, _ := json.Marshal(model.GetExampleScene())
	summaryText := SummaryDocument(media)
	mimeType := mimeTypeOf(context)

	group, groupCtx := errgroup.WithContext(context.GetContext())
	group.SetLimit(s.numberOfWorkers)

	for _, scene := range media.Scenes {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			return s.extract(groupCtx, media, scene, summaryText, string(exampleJson), mimeType)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	s.mediaKey.Set(context, media)
	return nil
}

func (s *SceneExtractor) extract(ctx goctx.Context, media *model.Media, scene *model.Scene, summaryText string, exampleJson string, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sceneCtx, span := s.Tracer.Start(ctx, fmt.Sprintf("%s_genai_scene_%d", s.GetName(), scene.SequenceNumber))
	defer span.End()
	span.SetAttributes(
		attribute.Int("sequence", scene.SequenceNumber),
		attribute.String("start", scene.Start),
		attribute.String("end", scene.End),
	)

	vocabulary := map[string]string{
		"SEQUENCE":         fmt.Sprintf("%d", scene.SequenceNumber),
		"SUMMARY_DOCUMENT": summaryText,
		"TIME_START":       scene.Start,
		"TIME_END":         scene.End,
		"EXAMPLE_JSON":     exampleJson,
		"MEDIA_URL":        media.MediaUrl,
	}
	var doc bytes.Buffer
	if err := s.promptTemplate.Execute(&doc, vocabulary); err != nil {
		span.SetStatus(codes.Error, "prompt template failed")
		return fmt.Errorf("scene %d: failed to execute prompt template: %w", scene.SequenceNumber, err)
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			cloud.NewFileData(media.MediaUrl, mimeType),
			cloud.NewTextPart(doc.String()),
		},
	}}

	out, err := cloud.GenerateMultiModalResponse(sceneCtx, s.counters, s.model, contents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scene extract failed")
		return fmt.Errorf("scene %d (%s-%s): %w", scene.SequenceNumber, scene.Start, scene.End, err)
	}

	// Each goroutine owns its scene, so no locking is needed.
	scene.Script = ScriptOf(out.Text)
	scene.TokensToGenerate = out.PromptTokens
	scene.TokensGenerated = out.OutputTokens
	span.SetStatus(codes.Ok, "completed scene")
	return nil
}

// SummaryDocument renders the shared context of every scene prompt.
func SummaryDocument(media *model.Media) string {
	var castBuilder strings.Builder
	for _, cast := range media.Cast {
		if cast == nil {
			continue
		}
		fmt.Fprintf(&castBuilder, "%s - %s\n", cast.CharacterName, cast.ActorName)
	}
	return fmt.Sprintf("Title:%s\nSummary:\n\n%s\nCast:\n\n%s", media.Title, media.Summary, castBuilder.String())
}

// ScriptOf returns the script of a model answer. Answers that follow the
// example Scene JSON yield its script field; anything else is used as is.
func ScriptOf(answer string) string {
	var parsed model.Scene
	if err := json.Unmarshal([]byte(answer), &parsed); err == nil && strings.TrimSpace(parsed.Script) != "" {
		return parsed.Script
	}
	return answer
}
